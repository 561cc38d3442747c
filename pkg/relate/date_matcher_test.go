package relate

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestDateProximityMatcher_LinearDecay(t *testing.T) {
	base := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	mem := corpus.NewMemory()
	mem.PutLetter(common.Letter{ID: "L1", Direction: common.Incoming, Date: datePtr(base)})
	mem.PutLetter(common.Letter{ID: "same-day", Direction: common.Incoming, Date: datePtr(base)})
	mem.PutLetter(common.Letter{ID: "mid", Direction: common.Outgoing, Date: datePtr(base.AddDate(0, 0, 15))})
	mem.PutLetter(common.Letter{ID: "edge", Direction: common.Incoming, Date: datePtr(base.AddDate(0, 0, -30))})
	mem.PutLetter(common.Letter{ID: "outside", Direction: common.Incoming, Date: datePtr(base.AddDate(0, 0, 31))})
	mem.PutLetter(common.Letter{ID: "undated", Direction: common.Incoming})

	source, _ := mem.GetLetter(context.Background(), common.Ref{Direction: common.Incoming, ID: "L1"})
	candidates, err := NewDateProximityMatcher(mem).Find(context.Background(), *source)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	byID := make(map[string]common.Candidate)
	for _, c := range candidates {
		byID[c.Target.ID] = c
	}

	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %v", len(candidates), candidates)
	}
	if _, found := byID["outside"]; found {
		t.Fatalf("candidate outside the 30 day window must not match")
	}
	if _, found := byID["undated"]; found {
		t.Fatalf("undated candidate must not match")
	}

	if got := byID["same-day"].Score; got != 0.7 {
		t.Fatalf("expected 0.7 for same day, got %v", got)
	}
	if got := byID["same-day"].Reason; got != "Date Proximity: 0 days apart" {
		t.Fatalf("unexpected reason %q", got)
	}

	if got := byID["mid"].Score; math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5 at 15 days, got %v", got)
	}

	// linear value at the edge is 0.3 up to float rounding
	if got := byID["edge"].Score; math.Abs(got-0.3) > 1e-9 {
		t.Fatalf("expected 0.3 at the window edge, got %v", got)
	}
	if got := byID["edge"].Reason; got != "Date Proximity: 30 days apart" {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestDateProximityMatcher_NoDateNoCandidates(t *testing.T) {
	mem := corpus.NewMemory()
	mem.PutLetter(common.Letter{
		ID: "L2", Direction: common.Incoming,
		Date: datePtr(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	})

	candidates, err := NewDateProximityMatcher(mem).Find(context.Background(), common.Letter{
		ID: "L1", Direction: common.Incoming,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates for undated source, got %d", len(candidates))
	}
}
