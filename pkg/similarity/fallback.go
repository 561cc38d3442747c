package similarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
	"github.com/diwan-erp/correspondence/pkg/logger"
)

// fallbackScore is the flat score assigned to every keyword match. The
// heuristic cannot grade match quality, so it reports a fixed mid-range
// confidence.
const fallbackScore = 0.5

// significantTokens extracts the top keywords of a text: lower-cased tokens
// longer than 3 characters, in order of appearance, capped at max.
func significantTokens(text string, max int) []string {
	var tokens []string
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(text) {
		if len(word) <= 3 {
			continue
		}
		token := strings.ToLower(word)
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
		if len(tokens) >= max {
			break
		}
	}
	return tokens
}

// findSimilarByKeywords is the degraded search path: candidates whose
// subject contains any of the query's top-5 significant tokens, each scored
// a flat 0.5.
func (e *Engine) findSimilarByKeywords(
	ctx context.Context,
	dir common.Direction,
	excludeID string,
	queryText string,
	limit int,
) []common.Candidate {
	tokens := significantTokens(queryText, 5)
	if len(tokens) == 0 {
		return nil
	}

	letters, err := e.reader.ListLetters(ctx, dir, corpus.Filter{ExcludeID: excludeID})
	if err != nil {
		logger.Error("[Similarity] Keyword fallback scan failed", "direction", dir, "err", err)
		return nil
	}

	var candidates []common.Candidate
	for _, letter := range letters {
		subject := strings.ToLower(letter.Subject)
		matched := false
		for _, token := range tokens {
			if strings.Contains(subject, token) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		candidates = append(candidates, common.Candidate{
			Target: common.Ref{Direction: dir, ID: letter.ID},
			Score:  fallbackScore,
			Reason: reasonForScore(fallbackScore),
		})
		if limit > 0 && len(candidates) >= limit {
			break
		}
	}
	return candidates
}

func reasonForScore(score float64) string {
	return fmt.Sprintf("Content Similarity: %d%%", int(score*100))
}
