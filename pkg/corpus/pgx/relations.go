package pgx

import (
	"context"
	"fmt"

	"github.com/diwan-erp/correspondence/internal/util"
	"github.com/diwan-erp/correspondence/pkg/common"
)

func (s *Store) getRelations(ctx context.Context, ref common.Ref) ([]common.RelationLink, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT target_direction, target_id, score, reason, origin
		 FROM letter_relations
		 WHERE letter_direction = $1 AND letter_id = $2
		 ORDER BY score DESC, target_id`,
		ref.Direction, ref.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("get relations: %w", err)
	}
	defer rows.Close()

	var links []common.RelationLink
	for rows.Next() {
		var link common.RelationLink
		err := rows.Scan(&link.Target.Direction, &link.Target.ID, &link.Score, &link.Reason, &link.Origin)
		if err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ReplaceAutoRelations swaps the letter's Auto relation set in a single
// transaction. Manual rows are never touched. A target that already has a
// Manual link is skipped, keeping one link per target pair.
func (s *Store) ReplaceAutoRelations(ctx context.Context, ref common.Ref, links []common.RelationLink) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace relations: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM letter_relations
		 WHERE letter_direction = $1 AND letter_id = $2 AND origin = $3`,
		ref.Direction, ref.ID, common.OriginAuto,
	)
	if err != nil {
		return fmt.Errorf("clear auto relations: %w", err)
	}

	for _, link := range links {
		_, err := tx.Exec(ctx,
			`INSERT INTO letter_relations
			   (letter_direction, letter_id, target_direction, target_id, score, reason, origin)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (letter_direction, letter_id, target_direction, target_id) DO NOTHING`,
			ref.Direction, ref.ID,
			link.Target.Direction, link.Target.ID,
			link.Score, util.SanitizePostgresText(link.Reason), common.OriginAuto,
		)
		if err != nil {
			return fmt.Errorf("insert relation to %s/%s: %w", link.Target.Direction, link.Target.ID, err)
		}
	}

	return tx.Commit(ctx)
}
