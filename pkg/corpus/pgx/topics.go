package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
)

func (s *Store) GetLetterTopics(ctx context.Context, ref common.Ref) ([]string, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT topic FROM letter_topics
		 WHERE letter_direction = $1 AND letter_id = $2
		 ORDER BY position`,
		ref.Direction, ref.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("get letter topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

func (s *Store) ListTopics(ctx context.Context, autoOnly bool) ([]common.Topic, error) {
	query := "SELECT name, keywords, rule_json, parent, auto_categorize FROM topics"
	if autoOnly {
		query += " WHERE auto_categorize"
	}
	query += " ORDER BY name"

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []common.Topic
	for rows.Next() {
		var topic common.Topic
		if err := rows.Scan(&topic.Name, &topic.Keywords, &topic.RuleJSON, &topic.Parent, &topic.AutoCategorize); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

func (s *Store) GetTopic(ctx context.Context, name string) (*common.Topic, error) {
	var topic common.Topic
	err := s.conn.QueryRow(ctx,
		"SELECT name, keywords, rule_json, parent, auto_categorize FROM topics WHERE name = $1",
		name,
	).Scan(&topic.Name, &topic.Keywords, &topic.RuleJSON, &topic.Parent, &topic.AutoCategorize)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, corpus.ErrNotFound
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &topic, nil
}

func (s *Store) CountTopics(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRow(ctx, "SELECT count(*) FROM topics").Scan(&count); err != nil {
		return 0, fmt.Errorf("count topics: %w", err)
	}
	return count, nil
}

func (s *Store) UpdateTopic(ctx context.Context, topic common.Topic) error {
	tag, err := s.conn.Exec(ctx,
		`UPDATE topics SET keywords = $2, rule_json = $3, parent = $4, auto_categorize = $5
		 WHERE name = $1`,
		topic.Name, topic.Keywords, topic.RuleJSON, topic.Parent, topic.AutoCategorize,
	)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return corpus.ErrNotFound
	}
	return nil
}

func (s *Store) AppendTopics(ctx context.Context, ref common.Ref, topics []string) (int, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("append topics: %w", err)
	}
	defer tx.Rollback(ctx)

	existing := make(map[string]struct{})
	rows, err := tx.Query(ctx,
		"SELECT topic FROM letter_topics WHERE letter_direction = $1 AND letter_id = $2",
		ref.Direction, ref.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("append topics: %w", err)
	}
	position := 0
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			rows.Close()
			return 0, fmt.Errorf("append topics: %w", err)
		}
		existing[topic] = struct{}{}
		position++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("append topics: %w", err)
	}

	added := 0
	for _, topic := range topics {
		if _, present := existing[topic]; present {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO letter_topics (letter_direction, letter_id, topic, position)
			 VALUES ($1, $2, $3, $4)`,
			ref.Direction, ref.ID, topic, position,
		)
		if err != nil {
			return 0, fmt.Errorf("append topic %q: %w", topic, err)
		}
		existing[topic] = struct{}{}
		position++
		added++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("append topics: %w", err)
	}
	return added, nil
}
