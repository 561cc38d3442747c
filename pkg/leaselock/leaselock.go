// Package leaselock serializes the worker's per-letter processing with a
// Postgres-backed lease. Rapid consecutive saves of one letter dispatch
// several queue messages; the lease makes their embedding, topic and
// relation writes run one at a time instead of interleaving.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/diwan-erp/correspondence/pkg/common"
)

// ErrLost cancels the lease context when a renewal finds the row gone or
// owned by someone else.
var ErrLost = errors.New("letter lease lost")

const (
	// waiters poll; contention is between a handful of worker replicas,
	// never wide
	waitInterval = 250 * time.Millisecond
	waitJitter   = 100 * time.Millisecond

	renewTimeout = 15 * time.Second
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Client struct {
	db dbConn
}

func New(pool *pgxpool.Pool) *Client {
	return &Client{db: pool}
}

// lease tracks one held letter lock and its renewal goroutine.
type lease struct {
	key   string
	token string

	ctx    context.Context
	cancel context.CancelCauseFunc

	client *Client

	stopOnce sync.Once
	stopCh   chan struct{}
}

// WithLease blocks until the letter's lease is acquired, runs fn under a
// context that is cancelled with ErrLost as cause if the lease slips away
// mid-run, and releases the lease afterwards. The lease is renewed in the
// background at half the TTL, so fn may outlive a single TTL as long as
// the database stays reachable.
func (c *Client) WithLease(ctx context.Context, ref common.Ref, ttl time.Duration, fn func(ctx context.Context) error) error {
	l, err := c.acquire(ctx, ref, ttl)
	if err != nil {
		return err
	}
	defer func() {
		_ = l.release(context.Background())
	}()
	return fn(l.ctx)
}

// LockKey returns the lock row key for a letter. Exported so operators can
// match letter_locks rows back to letters.
func LockKey(ref common.Ref) string {
	return fmt.Sprintf("letter:%s:%s", ref.Direction, ref.ID)
}

func (c *Client) acquire(ctx context.Context, ref common.Ref, ttl time.Duration) (*lease, error) {
	if ref.ID == "" {
		return nil, errors.New("letter lease: empty letter id")
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	key := LockKey(ref)
	ttlMs := ttl.Milliseconds()

	tok, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	token := "worker-" + tok

	for {
		ok, err := c.tryAcquire(ctx, key, token, ttlMs)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if err := sleepWithJitter(ctx, waitInterval, waitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &lease{
		key:    key,
		token:  token,
		ctx:    leaseCtx,
		cancel: cancel,
		client: c,
		stopCh: make(chan struct{}),
	}

	go l.renewLoop(max(ttl/2, time.Second), ttlMs)

	return l, nil
}

func (c *Client) tryAcquire(ctx context.Context, key, token string, ttlMs int64) (bool, error) {
	var returnedKey string
	err := c.db.QueryRow(ctx, tryAcquireSQL, key, token, ttlMs).Scan(&returnedKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return returnedKey != "", nil
}

func (l *lease) release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})

	_, err := l.client.db.Exec(ctx, releaseSQL, l.key, l.token)
	return err
}

func (l *lease) renewLoop(every time.Duration, ttlMs int64) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.ctx.Done():
			return
		case <-t.C:
			if err := l.renewOnce(ttlMs); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

func (l *lease) renewOnce(ttlMs int64) error {
	for attempt := range 3 {
		renewCtx, cancel := context.WithTimeout(l.ctx, renewTimeout)
		var returnedKey string
		err := l.client.db.QueryRow(renewCtx, renewSQL, l.key, l.token, ttlMs).Scan(&returnedKey)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt == 2 {
			return err
		}
		if err := sleepWithJitter(l.ctx, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return ErrLost
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO letter_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE letter_locks.expires_at < now()
   OR letter_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE letter_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM letter_locks
WHERE lock_key = $1 AND locked_by = $2;
`
