package common

import "testing"

func TestBuildText_IncomingUsesSummary(t *testing.T) {
	letter := Letter{
		Direction: Incoming,
		Subject:   "Water supply interruption",
		Summary:   "Planned maintenance next week",
		Body:      "should be ignored for incoming",
		OCRText:   "scanned notice",
	}

	got := BuildText(letter)
	want := "Water supply interruption Planned maintenance next week scanned notice"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildText_OutgoingUsesBody(t *testing.T) {
	letter := Letter{
		Direction: Outgoing,
		Subject:   "Response to your inquiry",
		Summary:   "should be ignored for outgoing",
		Body:      "We confirm receipt of your letter",
	}

	got := BuildText(letter)
	want := "Response to your inquiry We confirm receipt of your letter"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBuildText_SkipsEmptyParts(t *testing.T) {
	letter := Letter{
		Direction: Incoming,
		Subject:   "Only a subject",
	}

	got := BuildText(letter)
	if got != "Only a subject" {
		t.Fatalf("expected %q, got %q", "Only a subject", got)
	}
}

func TestBuildText_AllEmpty(t *testing.T) {
	if got := BuildText(Letter{Direction: Outgoing}); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestDirection_Opposite(t *testing.T) {
	if Incoming.Opposite() != Outgoing {
		t.Fatalf("expected opposite of incoming to be outgoing")
	}
	if Outgoing.Opposite() != Incoming {
		t.Fatalf("expected opposite of outgoing to be incoming")
	}
}

func TestTopic_KeywordList(t *testing.T) {
	topic := Topic{Keywords: " Water , SEWAGE,, roads "}
	got := topic.KeywordList()
	want := []string{"water", "sewage", "roads"}
	if len(got) != len(want) {
		t.Fatalf("expected %d keywords, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
