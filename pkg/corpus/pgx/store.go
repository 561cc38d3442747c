package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Store implements the corpus contract on PostgreSQL with pgvector for the
// persisted-embedding similarity fast path. It works over a pool or a
// single connection.
type Store struct {
	conn pgxIConn
}

// NewStore creates a corpus store using an existing database connection.
func NewStore(conn pgxIConn) *Store {
	return &Store{conn: conn}
}
