package relate

import (
	"context"
	"fmt"
	"testing"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
)

func TestCorrespondentMatcher_SubstringBothDirections(t *testing.T) {
	mem := corpus.NewMemory()
	mem.PutLetter(common.Letter{ID: "L1", Direction: common.Incoming, Correspondent: "Acme Corp"})
	mem.PutLetter(common.Letter{ID: "in-match", Direction: common.Incoming, Correspondent: "Acme Corp Holdings"})
	mem.PutLetter(common.Letter{ID: "out-match", Direction: common.Outgoing, Correspondent: "Acme Corp"})
	mem.PutLetter(common.Letter{ID: "other", Direction: common.Incoming, Correspondent: "Globex"})

	source, _ := mem.GetLetter(context.Background(), common.Ref{Direction: common.Incoming, ID: "L1"})
	candidates, err := NewCorrespondentMatcher(mem).Find(context.Background(), *source)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(candidates), candidates)
	}

	byID := make(map[string]common.Candidate)
	for _, c := range candidates {
		byID[c.Target.ID] = c
	}

	in := byID["in-match"]
	if in.Score != 0.85 {
		t.Fatalf("expected flat 0.85, got %v", in.Score)
	}
	if in.Reason != "Same Sender: Acme Corp Holdings" {
		t.Fatalf("unexpected reason %q", in.Reason)
	}

	out := byID["out-match"]
	if out.Score != 0.85 {
		t.Fatalf("expected flat 0.85, got %v", out.Score)
	}
	if out.Reason != "Same Recipient: Acme Corp" {
		t.Fatalf("unexpected reason %q", out.Reason)
	}
}

func TestCorrespondentMatcher_PerDirectionLimit(t *testing.T) {
	mem := corpus.NewMemory()
	mem.PutLetter(common.Letter{ID: "L1", Direction: common.Incoming, Correspondent: "City Council"})
	for i := 0; i < 15; i++ {
		mem.PutLetter(common.Letter{
			ID:            fmt.Sprintf("in-%d", i),
			Direction:     common.Incoming,
			Correspondent: "City Council",
		})
	}

	source, _ := mem.GetLetter(context.Background(), common.Ref{Direction: common.Incoming, ID: "L1"})
	candidates, err := NewCorrespondentMatcher(mem).Find(context.Background(), *source)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(candidates) != 10 {
		t.Fatalf("expected limit of 10 per direction, got %d", len(candidates))
	}
}

func TestCorrespondentMatcher_NormalizesWhitespace(t *testing.T) {
	mem := corpus.NewMemory()
	mem.PutLetter(common.Letter{ID: "match", Direction: common.Incoming, Correspondent: "Water Authority"})

	candidates, err := NewCorrespondentMatcher(mem).Find(context.Background(), common.Letter{
		ID: "L1", Direction: common.Incoming, Correspondent: "  Water \t Authority ",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate after normalization, got %d", len(candidates))
	}
	if candidates[0].Target.ID != "match" {
		t.Fatalf("unexpected candidate %q", candidates[0].Target.ID)
	}
}

func TestCorrespondentMatcher_EmptyCorrespondent(t *testing.T) {
	mem := corpus.NewMemory()
	mem.PutLetter(common.Letter{ID: "L2", Direction: common.Incoming, Correspondent: "Acme"})

	candidates, err := NewCorrespondentMatcher(mem).Find(context.Background(), common.Letter{
		ID: "L1", Direction: common.Incoming,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates without a correspondent, got %d", len(candidates))
	}
}
