package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/bio-nexus/backend/internal/db"
	"github.com/bio-nexus/backend/pkg/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) GetJob(ctx context.Context, id string) (common.GraphSyncJob, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row, err := s.q.GetGraphSyncJob(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.GraphSyncJob{}, &common.NotFoundError{Kind: "graph_sync_job", ID: id}
	}
	if err != nil {
		return common.GraphSyncJob{}, storeErr("get_job", err)
	}
	return jobFromRow(row), nil
}

func (s *Store) MarkJobDone(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.q.MarkGraphSyncDone(ctx, id)
	if err != nil {
		return storeErr("mark_job_done", err)
	}
	if n == 0 {
		return &common.NotFoundError{Kind: "graph_sync_job", ID: id}
	}
	return nil
}

func (s *Store) MarkJobFailed(ctx context.Context, id string, status common.GraphSyncStatus, lastErr string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.q.MarkGraphSyncFailed(ctx, db.MarkGraphSyncFailedParams{
		ID:        id,
		Status:    string(status),
		LastError: lastErr,
	})
	if err != nil {
		return storeErr("mark_job_failed", err)
	}
	if n == 0 {
		return &common.NotFoundError{Kind: "graph_sync_job", ID: id}
	}
	return nil
}

// StalePendingJobs lists pending jobs not touched within olderThan.
func (s *Store) StalePendingJobs(ctx context.Context, olderThan time.Duration, limit int) ([]common.GraphSyncJob, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	before := pgtype.Timestamptz{Time: time.Now().Add(-olderThan), Valid: true}
	rows, err := s.q.ListStaleGraphSyncJobs(ctx, before, int32(limit))
	if err != nil {
		return nil, storeErr("stale_jobs", err)
	}
	out := make([]common.GraphSyncJob, 0, len(rows))
	for _, r := range rows {
		out = append(out, jobFromRow(r))
	}
	return out, nil
}

func (s *Store) TouchJob(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return storeErr("touch_job", s.q.TouchGraphSyncJob(ctx, id))
}

func jobFromRow(r db.GraphSyncJob) common.GraphSyncJob {
	return common.GraphSyncJob{
		ID:        r.ID,
		PaperID:   r.PaperID,
		Status:    common.GraphSyncStatus(r.Status),
		Attempts:  int(r.Attempts),
		LastError: r.LastError,
		CreatedAt: fromTime(r.CreatedAt),
		UpdatedAt: fromTime(r.UpdatedAt),
	}
}
