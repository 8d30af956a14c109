package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/bio-nexus/backend/internal/db"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Store implements store.Store on PostgreSQL with pgvector. Every operation
// runs under its own deadline.
type Store struct {
	conn    *pgxpool.Pool
	q       *db.Queries
	timeout time.Duration
}

var _ store.Store = (*Store)(nil)

// NewStoreParams configures a Store.
type NewStoreParams struct {
	Conn    *pgxpool.Pool
	Timeout time.Duration
}

func NewStore(params NewStoreParams) *Store {
	if params.Timeout <= 0 {
		params.Timeout = 30 * time.Second
	}
	return &Store{
		conn:    params.Conn,
		q:       db.New(params.Conn),
		timeout: params.Timeout,
	}
}

// NewPool connects a pool whose connections know the pgvector types.
func NewPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &common.StoreError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func int4(v int) pgtype.Int4 {
	if v == 0 {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(v), Valid: true}
}

func fromInt4(v pgtype.Int4) int {
	if !v.Valid {
		return 0
	}
	return int(v.Int32)
}

func fromTime(v pgtype.Timestamptz) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return v.Time
}
