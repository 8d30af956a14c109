package leaselock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend keeps leases in the app_locks table.
type PostgresBackend struct {
	db dbConn
}

// NewPostgres accepts a *pgxpool.Pool or any connection with Exec and
// QueryRow.
func NewPostgres(db dbConn) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func (b *PostgresBackend) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return b.returning(ctx, tryAcquireSQL, key, token, ttl)
}

func (b *PostgresBackend) Renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return b.returning(ctx, renewSQL, key, token, ttl)
}

func (b *PostgresBackend) Release(ctx context.Context, key, token string) error {
	_, err := b.db.Exec(ctx, releaseSQL, key, token)
	return err
}

func (b *PostgresBackend) returning(ctx context.Context, sql, key, token string, ttl time.Duration) (bool, error) {
	var returned string
	err := b.db.QueryRow(ctx, sql, key, token, max(ttl.Milliseconds(), 1)).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return returned != "", nil
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
