package relate

import (
	"context"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/similarity"
)

// SimilarityMatcher wraps the similarity engine as a relation signal. It
// searches the source letter's own direction, then the opposite direction
// with a tighter threshold and smaller limit to catch reply pairs.
// Similarity failures never propagate: the engine degrades internally, so
// this matcher cannot fail.
type SimilarityMatcher struct {
	engine *similarity.Engine
}

func NewSimilarityMatcher(engine *similarity.Engine) *SimilarityMatcher {
	return &SimilarityMatcher{engine: engine}
}

func (m *SimilarityMatcher) Name() string { return "similarity" }

func (m *SimilarityMatcher) Find(ctx context.Context, letter common.Letter) ([]common.Candidate, error) {
	text := common.BuildText(letter)
	if text == "" {
		return nil, nil
	}

	results := m.engine.FindSimilar(
		ctx,
		letter.Direction,
		letter.ID,
		text,
		similarity.SameDirectionLimit,
		similarity.SameDirectionThreshold,
	)

	opposite := m.engine.FindSimilar(
		ctx,
		letter.Direction.Opposite(),
		"",
		text,
		similarity.CrossDirectionLimit,
		similarity.CrossDirectionThreshold,
	)

	return append(results, opposite...), nil
}
