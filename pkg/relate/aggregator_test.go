package relate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/diwan-erp/correspondence/pkg/common"
)

type stubMatcher struct {
	name       string
	candidates []common.Candidate
	err        error
}

func (m *stubMatcher) Name() string { return m.name }

func (m *stubMatcher) Find(context.Context, common.Letter) ([]common.Candidate, error) {
	return m.candidates, m.err
}

func ref(id string) common.Ref {
	return common.Ref{Direction: common.Incoming, ID: id}
}

func TestAggregator_HigherScoreWinsOnDuplicate(t *testing.T) {
	agg := NewAggregator(
		&stubMatcher{name: "a", candidates: []common.Candidate{
			{Target: ref("X"), Score: 0.6, Reason: "Common Topics: water"},
		}},
		&stubMatcher{name: "b", candidates: []common.Candidate{
			{Target: ref("X"), Score: 0.85, Reason: "Same Sender: Acme"},
		}},
	)

	got := agg.Compute(context.Background(), common.Letter{ID: "L"})
	if len(got) != 1 {
		t.Fatalf("expected 1 merged candidate, got %d", len(got))
	}
	if got[0].Score != 0.85 {
		t.Fatalf("expected winning score 0.85, got %v", got[0].Score)
	}
	if got[0].Reason != "Same Sender: Acme" {
		t.Fatalf("expected winning reason to survive, got %q", got[0].Reason)
	}
}

func TestAggregator_FirstSeenWinsTies(t *testing.T) {
	agg := NewAggregator(
		&stubMatcher{name: "a", candidates: []common.Candidate{
			{Target: ref("X"), Score: 0.5, Reason: "first"},
		}},
		&stubMatcher{name: "b", candidates: []common.Candidate{
			{Target: ref("X"), Score: 0.5, Reason: "second"},
		}},
	)

	got := agg.Compute(context.Background(), common.Letter{ID: "L"})
	if len(got) != 1 {
		t.Fatalf("expected 1 merged candidate, got %d", len(got))
	}
	if got[0].Reason != "first" {
		t.Fatalf("expected first-seen candidate to win the tie, got %q", got[0].Reason)
	}
}

func TestAggregator_SortsAndTruncates(t *testing.T) {
	var many []common.Candidate
	for i := 0; i < 30; i++ {
		many = append(many, common.Candidate{
			Target: ref(fmt.Sprintf("C%d", i)),
			Score:  float64(i) / 100,
		})
	}

	agg := NewAggregator(&stubMatcher{name: "a", candidates: many})
	got := agg.Compute(context.Background(), common.Letter{ID: "L"})

	if len(got) != MaxRelations {
		t.Fatalf("expected %d candidates, got %d", MaxRelations, len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("candidates not sorted descending at %d: %v > %v", i, got[i].Score, got[i-1].Score)
		}
	}
	if got[0].Target.ID != "C29" {
		t.Fatalf("expected highest-scored candidate first, got %s", got[0].Target.ID)
	}
}

func TestAggregator_FailingMatcherIsIsolated(t *testing.T) {
	agg := NewAggregator(
		&stubMatcher{name: "broken", err: errors.New("corpus unreachable")},
		&stubMatcher{name: "ok", candidates: []common.Candidate{
			{Target: ref("X"), Score: 0.6},
		}},
	)

	got := agg.Compute(context.Background(), common.Letter{ID: "L"})
	if len(got) != 1 {
		t.Fatalf("expected surviving matcher's candidate, got %d candidates", len(got))
	}
	if got[0].Target.ID != "X" {
		t.Fatalf("unexpected candidate %v", got[0])
	}
}
