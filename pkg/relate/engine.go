package relate

import (
	"context"
	"fmt"

	"github.com/diwan-erp/correspondence/internal/util"
	"github.com/diwan-erp/correspondence/pkg/ai"
	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
	"github.com/diwan-erp/correspondence/pkg/logger"
	"github.com/diwan-erp/correspondence/pkg/similarity"
)

// Defaults for the standalone similar-documents query.
const (
	FindSimilarLimit     = 10
	FindSimilarThreshold = 0.3
)

// Result is the outcome of a relation computation: the merged candidates
// in rank order.
type Result struct {
	Relations []common.Candidate `json:"relations"`
	Count     int                `json:"count"`
}

// Engine wires the four matchers and the similarity engine over one corpus
// and exposes the relation operations the application calls. All reads go
// through the corpus accessor; the only write is the Auto-relation replace
// in RefreshRelations.
type Engine struct {
	store    corpus.Store
	embedder ai.EmbeddingClient
	sim      *similarity.Engine
	agg      *Aggregator
}

// NewEngine builds an engine over the given corpus. embedder may be nil;
// similarity then always runs on its keyword fallback. The matcher order
// (topic, date, correspondent, similarity) is fixed — the aggregator's
// tie-break depends on it.
func NewEngine(store corpus.Store, embedder ai.EmbeddingClient) *Engine {
	sim := similarity.NewEngine(embedder, store)
	return &Engine{
		store:    store,
		embedder: embedder,
		sim:      sim,
		agg: NewAggregator(
			NewTopicMatcher(store),
			NewDateProximityMatcher(store),
			NewCorrespondentMatcher(store),
			NewSimilarityMatcher(sim),
		),
	}
}

// Compute runs all matchers for the given letter and returns the merged,
// ranked candidate list without persisting anything.
func (e *Engine) Compute(ctx context.Context, letter common.Letter) []common.Candidate {
	return e.agg.Compute(ctx, letter)
}

// RefreshRelations recomputes and persists the Auto relations of a stored
// letter. Manual relations are preserved; the Auto set is replaced
// wholesale, which makes the operation idempotent for an unchanged corpus.
func (e *Engine) RefreshRelations(ctx context.Context, ref common.Ref) (*Result, error) {
	letter, err := e.store.GetLetter(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load letter %s/%s: %w", ref.Direction, ref.ID, err)
	}

	candidates := e.Compute(ctx, *letter)

	// A target held by a Manual link keeps that link; the Auto candidate
	// is dropped so the letter never carries two links for one target.
	manual := make(map[common.Ref]struct{})
	for _, link := range letter.Relations {
		if link.Origin == common.OriginManual {
			manual[link.Target] = struct{}{}
		}
	}

	links := make([]common.RelationLink, 0, len(candidates))
	stored := make([]common.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if _, held := manual[candidate.Target]; held {
			continue
		}
		stored = append(stored, candidate)
		links = append(links, common.RelationLink{
			Target: candidate.Target,
			Score:  candidate.Score,
			Reason: candidate.Reason,
			Origin: common.OriginAuto,
		})
	}

	if err := e.store.ReplaceAutoRelations(ctx, ref, links); err != nil {
		return nil, fmt.Errorf("persist relations of %s/%s: %w", ref.Direction, ref.ID, err)
	}

	logger.Info("[Relate] Relations refreshed", "letter", ref.ID, "direction", ref.Direction, "count", len(links))
	return &Result{Relations: stored, Count: len(stored)}, nil
}

// PreviewRelations computes relations for a letter that may not be
// persisted yet. Nothing is written; the caller sees what RefreshRelations
// would store.
func (e *Engine) PreviewRelations(ctx context.Context, letter common.Letter) *Result {
	candidates := e.Compute(ctx, letter)
	return &Result{Relations: candidates, Count: len(candidates)}
}

// FindSimilar runs the similarity signal alone for a stored letter,
// searching its own direction with the default limit and threshold.
func (e *Engine) FindSimilar(ctx context.Context, ref common.Ref) ([]common.Candidate, error) {
	letter, err := e.store.GetLetter(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load letter %s/%s: %w", ref.Direction, ref.ID, err)
	}

	text := common.BuildText(*letter)
	if text == "" {
		return nil, nil
	}
	return e.sim.FindSimilar(ctx, ref.Direction, ref.ID, text, FindSimilarLimit, FindSimilarThreshold), nil
}

// UpdateEmbedding recomputes and stores the letter's comparison-text
// embedding so corpus-side vector search stays current. A missing or
// failing backend is not an error; the embedding is simply left as is.
func (e *Engine) UpdateEmbedding(ctx context.Context, ref common.Ref) error {
	if e.embedder == nil {
		return nil
	}

	letter, err := e.store.GetLetter(ctx, ref)
	if err != nil {
		return fmt.Errorf("load letter %s/%s: %w", ref.Direction, ref.ID, err)
	}

	text := common.BuildText(*letter)
	if text == "" {
		return nil
	}

	maxTokens := int(util.GetEnvNumeric("AI_EMBED_MAX_TOKENS", 512))
	embedding, err := e.embedder.GenerateEmbedding(ctx, []byte(ai.TruncateTokens(text, maxTokens)))
	if err != nil {
		logger.Debug("[Relate] Embedding refresh skipped, backend unavailable", "letter", ref.ID, "err", err)
		return nil
	}
	return e.store.SaveEmbedding(ctx, ref, embedding)
}
