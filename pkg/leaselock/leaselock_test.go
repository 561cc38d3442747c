package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/diwan-erp/correspondence/pkg/common"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if p, ok := dest[0].(*string); ok {
			*p = r.key
		}
	}
	return nil
}

// stubDB serves scripted QueryRow results in order and records Exec calls.
type stubDB struct {
	mu      sync.Mutex
	rows    []fakeRow
	queries []string
	execs   [][]any
}

func (s *stubDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, sql)
	if len(s.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row
}

func (s *stubDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append(s.execs, args)
	return pgconn.CommandTag{}, nil
}

func TestLockKey(t *testing.T) {
	ref := common.Ref{Direction: common.Incoming, ID: "L-42"}
	if got := LockKey(ref); got != "letter:incoming:L-42" {
		t.Fatalf("unexpected lock key %q", got)
	}
}

func TestWithLease_RunsAndReleases(t *testing.T) {
	key := LockKey(common.Ref{Direction: common.Incoming, ID: "L1"})
	db := &stubDB{rows: []fakeRow{{key: key}}}
	client := &Client{db: db}

	ran := false
	err := client.WithLease(context.Background(), common.Ref{Direction: common.Incoming, ID: "L1"}, time.Hour,
		func(ctx context.Context) error {
			ran = true
			if ctx.Err() != nil {
				t.Fatalf("lease context already done: %v", context.Cause(ctx))
			}
			return nil
		})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !ran {
		t.Fatalf("callback never ran")
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.execs) != 1 {
		t.Fatalf("expected 1 release exec, got %d", len(db.execs))
	}
	if got := db.execs[0][0]; got != key {
		t.Fatalf("released wrong key %v", got)
	}
	token, ok := db.execs[0][1].(string)
	if !ok || !strings.HasPrefix(token, "worker-") {
		t.Fatalf("unexpected lease token %v", db.execs[0][1])
	}
}

func TestWithLease_WaitsWhileHeld(t *testing.T) {
	ref := common.Ref{Direction: common.Outgoing, ID: "L2"}
	db := &stubDB{rows: []fakeRow{
		{err: pgx.ErrNoRows}, // held by another worker
		{key: LockKey(ref)},
	}}
	client := &Client{db: db}

	err := client.WithLease(context.Background(), ref, time.Hour, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error after waiting, got %v", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	acquires := 0
	for _, q := range db.queries {
		if strings.Contains(q, "INSERT INTO letter_locks") {
			acquires++
		}
	}
	if acquires != 2 {
		t.Fatalf("expected 2 acquire attempts, got %d", acquires)
	}
}

func TestWithLease_CancelledWhileWaiting(t *testing.T) {
	ref := common.Ref{Direction: common.Incoming, ID: "L3"}
	db := &stubDB{} // never acquirable
	client := &Client{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.WithLease(ctx, ref, time.Hour, func(ctx context.Context) error {
		t.Fatalf("callback must not run without the lease")
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestWithLease_PropagatesCallbackError(t *testing.T) {
	ref := common.Ref{Direction: common.Incoming, ID: "L4"}
	db := &stubDB{rows: []fakeRow{{key: LockKey(ref)}}}
	client := &Client{db: db}

	wantErr := errors.New("pipeline failed")
	err := client.WithLease(context.Background(), ref, time.Hour, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error, got %v", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.execs) != 1 {
		t.Fatalf("lease not released after callback error")
	}
}

func TestWithLease_EmptyLetterID(t *testing.T) {
	client := &Client{db: &stubDB{}}
	err := client.WithLease(context.Background(), common.Ref{Direction: common.Incoming}, time.Hour,
		func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatalf("expected error for empty letter id")
	}
}
