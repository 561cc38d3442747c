package relate

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/logger"
)

// MaxRelations bounds the merged relation list per letter.
const MaxRelations = 20

// Aggregator runs the configured matchers and merges their candidate lists
// into a single ranked, deduplicated result.
//
// Signals are never combined additively: when two matchers discover the
// same target, the candidate with the strictly higher score wins, and the
// first-seen candidate wins exact ties. With the fixed matcher order this
// keeps the merge deterministic and prevents double-counting targets found
// by more than one signal.
type Aggregator struct {
	matchers []Matcher
}

// NewAggregator creates an aggregator over the given matchers. The slice
// order is the merge order and must stay fixed for deterministic output.
func NewAggregator(matchers ...Matcher) *Aggregator {
	return &Aggregator{matchers: matchers}
}

// Compute runs all matchers and returns the merged candidates, sorted by
// score descending and truncated to MaxRelations. Matchers execute
// concurrently; a failing matcher contributes zero candidates and is
// logged, never failing the whole computation.
func (a *Aggregator) Compute(ctx context.Context, letter common.Letter) []common.Candidate {
	collected := make([][]common.Candidate, len(a.matchers))

	eg, gCtx := errgroup.WithContext(ctx)
	for i, matcher := range a.matchers {
		idx, m := i, matcher
		eg.Go(func() error {
			candidates, err := m.Find(gCtx, letter)
			if err != nil {
				logger.Error("[Relate] Matcher failed, signal dropped", "matcher", m.Name(), "letter", letter.ID, "err", err)
				return nil
			}
			collected[idx] = candidates
			return nil
		})
	}
	// matcher errors are swallowed above; Wait only returns ctx errors
	_ = eg.Wait()

	var all []common.Candidate
	for _, candidates := range collected {
		all = append(all, candidates...)
	}
	return merge(all)
}

// merge deduplicates by target, keeping the strictly higher score on
// collision, then ranks and truncates.
func merge(candidates []common.Candidate) []common.Candidate {
	best := make(map[common.Ref]int, len(candidates))
	var unique []common.Candidate
	for _, candidate := range candidates {
		if idx, seen := best[candidate.Target]; seen {
			if candidate.Score > unique[idx].Score {
				unique[idx] = candidate
			}
			continue
		}
		best[candidate.Target] = len(unique)
		unique = append(unique, candidate)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Score > unique[j].Score
	})
	if len(unique) > MaxRelations {
		unique = unique[:MaxRelations]
	}
	return unique
}
