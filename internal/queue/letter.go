package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diwan-erp/correspondence/internal/util"
	"github.com/diwan-erp/correspondence/pkg/ai"
	"github.com/diwan-erp/correspondence/pkg/classify"
	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
	pgxcorpus "github.com/diwan-erp/correspondence/pkg/corpus/pgx"
	"github.com/diwan-erp/correspondence/pkg/leaselock"
	"github.com/diwan-erp/correspondence/pkg/logger"
	"github.com/diwan-erp/correspondence/pkg/relate"
)

// LetterSavedMsg announces that a letter was inserted or updated and its
// derived data (embedding, auto relations, auto topics) must be recomputed.
type LetterSavedMsg struct {
	Direction     string `json:"direction"`
	LetterID      string `json:"letter_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ProcessLetterSaved runs the full post-save pipeline for one letter. Each
// stage degrades independently: a failed embedding or classification never
// blocks relation refresh. Only a failure to load or persist is returned,
// so the message is retried.
func ProcessLetterSaved(
	ctx context.Context,
	embedder ai.EmbeddingClient,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(LetterSavedMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal letter saved message: %w", err)
	}

	direction := common.Direction(data.Direction)
	if !direction.Valid() || data.LetterID == "" {
		return fmt.Errorf("invalid letter reference %q/%q", data.Direction, data.LetterID)
	}
	ref := common.Ref{Direction: direction, ID: data.LetterID}

	locks := leaselock.New(conn)
	ttl := util.GetEnvDuration("LETTER_LOCK_TTL_SEC", 120)

	return locks.WithLease(ctx, ref, ttl, func(ctx context.Context) error {
		store := pgxcorpus.NewStore(conn)
		engine := relate.NewEngine(store, embedder)
		classifier := classify.NewClassifier(store)

		if err := engine.UpdateEmbedding(ctx, ref); err != nil {
			logger.Warn("[Queue] Embedding update failed", "letter", ref.ID, "direction", ref.Direction, "err", err)
		}

		topics, err := classifier.ClassifyLetter(ctx, ref)
		if err != nil {
			logger.Warn("[Queue] Classification failed", "letter", ref.ID, "direction", ref.Direction, "err", err)
		} else if len(topics) > 0 {
			if _, err := classifier.ApplyTopics(ctx, ref, topics); err != nil {
				logger.Warn("[Queue] Applying topics failed", "letter", ref.ID, "direction", ref.Direction, "err", err)
			}
		}

		result, err := engine.RefreshRelations(ctx, ref)
		if err != nil {
			// the letter may have been deleted between save and pickup
			if errors.Is(err, corpus.ErrNotFound) {
				logger.Warn("[Queue] Letter gone, dropping message", "letter", ref.ID, "direction", ref.Direction)
				return nil
			}
			return fmt.Errorf("refresh relations for %s/%s: %w", ref.Direction, ref.ID, err)
		}

		logger.Info(
			"[Queue] Letter pipeline done",
			"letter", ref.ID,
			"direction", ref.Direction,
			"relations", result.Count,
			"topics_matched", len(topics),
			"correlation_id", data.CorrelationID,
		)
		return nil
	})
}
