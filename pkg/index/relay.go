package index

import (
	"context"
	"time"

	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/logger"
)

// RelayStore lists and touches outbox rows.
type RelayStore interface {
	StalePendingJobs(ctx context.Context, olderThan time.Duration, limit int) ([]common.GraphSyncJob, error)
	TouchJob(ctx context.Context, id string) error
}

// Relay re-drives pending jobs whose notification was lost.
type Relay struct {
	Store     RelayStore
	Notifier  Notifier
	OlderThan time.Duration
	BatchSize int
}

// RunOnce notifies every stale pending job and returns how many were sent.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	olderThan := r.OlderThan
	if olderThan == 0 {
		olderThan = time.Minute
	}
	batch := r.BatchSize
	if batch <= 0 {
		batch = 100
	}

	jobs, err := r.Store.StalePendingJobs(ctx, olderThan, batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := r.Store.TouchJob(ctx, job.ID); err != nil {
			logger.Warn("[Index][Relay] Failed to touch job", "job_id", job.ID, "err", err)
			continue
		}
		if err := r.Notifier.Notify(ctx, job); err != nil {
			logger.Warn("[Index][Relay] Failed to re-drive job", "job_id", job.ID, "err", err)
			continue
		}
		sent++
	}
	if sent > 0 {
		logger.Info("[Index][Relay] Re-drove pending graph sync jobs", "count", sent)
	}
	return sent, nil
}
