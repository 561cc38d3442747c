package pgx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
)

const letterColumns = "id, direction, subject, correspondent, summary, body, ocr_text, letter_date"

func scanLetter(row pgxv5.Row) (*common.Letter, error) {
	var letter common.Letter
	err := row.Scan(
		&letter.ID,
		&letter.Direction,
		&letter.Subject,
		&letter.Correspondent,
		&letter.Summary,
		&letter.Body,
		&letter.OCRText,
		&letter.Date,
	)
	if err != nil {
		return nil, err
	}
	return &letter, nil
}

func (s *Store) GetLetter(ctx context.Context, ref common.Ref) (*common.Letter, error) {
	row := s.conn.QueryRow(ctx,
		"SELECT "+letterColumns+" FROM letters WHERE direction = $1 AND id = $2",
		ref.Direction, ref.ID,
	)
	letter, err := scanLetter(row)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, corpus.ErrNotFound
		}
		return nil, fmt.Errorf("get letter: %w", err)
	}

	letter.Topics, err = s.GetLetterTopics(ctx, ref)
	if err != nil {
		return nil, err
	}
	letter.Relations, err = s.getRelations(ctx, ref)
	if err != nil {
		return nil, err
	}
	return letter, nil
}

func (s *Store) ListLetters(ctx context.Context, dir common.Direction, filter corpus.Filter) ([]common.Letter, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + letterColumns + " FROM letters WHERE direction = $1")
	args := []any{dir}

	next := func(arg any) string {
		args = append(args, arg)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.ExcludeID != "" {
		sb.WriteString(" AND id <> " + next(filter.ExcludeID))
	}
	if filter.CorrespondentLike != "" {
		sb.WriteString(" AND correspondent LIKE '%' || " + next(filter.CorrespondentLike) + " || '%'")
	}
	if filter.DateFrom != nil {
		sb.WriteString(" AND letter_date >= " + next(*filter.DateFrom))
	}
	if filter.DateTo != nil {
		sb.WriteString(" AND letter_date <= " + next(*filter.DateTo))
	}
	sb.WriteString(" ORDER BY created_at, id")
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT " + next(filter.Limit))
	}

	rows, err := s.conn.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list letters: %w", err)
	}
	defer rows.Close()

	var letters []common.Letter
	for rows.Next() {
		letter, err := scanLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}
		letters = append(letters, *letter)
	}
	return letters, rows.Err()
}

func (s *Store) SaveEmbedding(ctx context.Context, ref common.Ref, embedding []float32) error {
	tag, err := s.conn.Exec(ctx,
		"UPDATE letters SET embedding = $1 WHERE direction = $2 AND id = $3",
		pgvector.NewVector(embedding), ref.Direction, ref.ID,
	)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corpus.ErrNotFound
	}
	return nil
}

// SearchByEmbedding implements corpus.VectorSearcher over the persisted
// letter embeddings using pgvector cosine distance. Scores come back in
// [0,1], threshold-filtered and sorted descending.
func (s *Store) SearchByEmbedding(
	ctx context.Context,
	dir common.Direction,
	excludeID string,
	embedding []float32,
	limit int,
	threshold float64,
) ([]common.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.conn.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS score
		 FROM letters
		 WHERE direction = $2 AND id <> $3 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		pgvector.NewVector(embedding), dir, excludeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var candidates []common.Candidate
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		if score < threshold {
			continue
		}
		candidates = append(candidates, common.Candidate{
			Target: common.Ref{Direction: dir, ID: id},
			Score:  score,
			Reason: fmt.Sprintf("Content Similarity: %d%%", int(score*100)),
		})
	}
	return candidates, rows.Err()
}
