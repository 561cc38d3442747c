package similarity

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/diwan-erp/correspondence/internal/util"
	"github.com/diwan-erp/correspondence/pkg/ai"
	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
	"github.com/diwan-erp/correspondence/pkg/logger"
)

// ErrBackendUnavailable marks an embedding backend that cannot be reached
// (or was never configured). Callers inside this package translate it into
// the keyword fallback; it is never surfaced past FindSimilar.
var ErrBackendUnavailable = errors.New("embedding backend unavailable")

// Defaults for the two similarity search passes. The opposite-direction
// pass uses a higher threshold and smaller limit to catch reply pairs
// without flooding the result with weak cross-direction noise.
// Transient backend failures get a few attempts before the keyword
// fallback takes over.
const embedMaxRetries = 3

const (
	SameDirectionLimit     = 10
	SameDirectionThreshold = 0.4
	CrossDirectionLimit    = 5
	CrossDirectionThreshold = 0.5
)

// Engine computes text similarity between letters. The embedding path
// encodes both texts with the configured backend and takes cosine
// similarity clamped to [0,1]; whenever the backend is unavailable the
// engine silently degrades to a deterministic keyword-overlap heuristic.
type Engine struct {
	client ai.EmbeddingClient
	reader corpus.Reader

	maxTokens int
}

// NewEngine creates a similarity engine over the given corpus. client may
// be nil, in which case every search runs on the keyword fallback.
func NewEngine(client ai.EmbeddingClient, reader corpus.Reader) *Engine {
	return &Engine{
		client:    client,
		reader:    reader,
		maxTokens: int(util.GetEnvNumeric("AI_EMBED_MAX_TOKENS", 512)),
	}
}

// Similarity returns the cosine similarity of two texts in [0,1]. It fails
// with ErrBackendUnavailable when no embedding backend is reachable.
func (e *Engine) Similarity(ctx context.Context, textA, textB string) (float64, error) {
	embA, err := e.embed(ctx, textA)
	if err != nil {
		return 0, err
	}
	embB, err := e.embed(ctx, textB)
	if err != nil {
		return 0, err
	}
	return clamp01(cosineSimilarity(embA, embB)), nil
}

// FindSimilar returns letters of the given direction whose comparison text
// is similar to queryText, scored in [0,1], filtered by threshold, sorted
// descending and truncated to limit. excludeID is skipped. A failing or
// absent embedding backend degrades to the keyword fallback; the error is
// logged, never returned.
func (e *Engine) FindSimilar(
	ctx context.Context,
	dir common.Direction,
	excludeID string,
	queryText string,
	limit int,
	threshold float64,
) []common.Candidate {
	if queryText == "" {
		return nil
	}

	queryEmb, err := e.embed(ctx, queryText)
	if err != nil {
		logger.Debug("[Similarity] Embedding backend unavailable, using keyword fallback", "err", err)
		return e.findSimilarByKeywords(ctx, dir, excludeID, queryText, limit)
	}

	// Persisted-embedding fast path when the corpus offers one.
	if searcher, ok := e.reader.(corpus.VectorSearcher); ok {
		candidates, err := searcher.SearchByEmbedding(ctx, dir, excludeID, queryEmb, limit, threshold)
		if err == nil {
			return candidates
		}
		logger.Warn("[Similarity] Vector search failed, scanning corpus", "err", err)
	}

	letters, err := e.reader.ListLetters(ctx, dir, corpus.Filter{ExcludeID: excludeID})
	if err != nil {
		logger.Error("[Similarity] Corpus scan failed", "direction", dir, "err", err)
		return nil
	}

	var candidates []common.Candidate
	for _, letter := range letters {
		text := common.BuildText(letter)
		if text == "" {
			continue
		}

		emb, err := e.embed(ctx, text)
		if err != nil {
			logger.Debug("[Similarity] Candidate embedding failed, skipping", "id", letter.ID, "err", err)
			continue
		}

		score := clamp01(cosineSimilarity(queryEmb, emb))
		if score < threshold {
			continue
		}
		candidates = append(candidates, common.Candidate{
			Target: common.Ref{Direction: dir, ID: letter.ID},
			Score:  round3(score),
			Reason: reasonForScore(score),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	if e.client == nil {
		return nil, ErrBackendUnavailable
	}
	bounded := ai.TruncateTokens(text, e.maxTokens)
	var emb []float32
	err := util.RetryErrWithContext(ctx, embedMaxRetries, func(ctx context.Context) error {
		var err error
		emb, err = e.client.GenerateEmbedding(ctx, []byte(bounded))
		return err
	})
	if err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}
	return emb, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
