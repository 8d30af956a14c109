package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const jobColumns = `id, paper_id, status, attempts, last_error, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (GraphSyncJob, error) {
	var i GraphSyncJob
	err := row.Scan(
		&i.ID,
		&i.PaperID,
		&i.Status,
		&i.Attempts,
		&i.LastError,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertGraphSyncJob = `-- name: InsertGraphSyncJob :exec
INSERT INTO graph_sync_jobs (id, paper_id, status)
VALUES ($1, $2, 'pending')
`

func (q *Queries) InsertGraphSyncJob(ctx context.Context, id, paperID string) error {
	_, err := q.db.Exec(ctx, insertGraphSyncJob, id, paperID)
	return err
}

const getGraphSyncJob = `-- name: GetGraphSyncJob :one
SELECT ` + jobColumns + `
FROM graph_sync_jobs
WHERE id = $1
`

func (q *Queries) GetGraphSyncJob(ctx context.Context, id string) (GraphSyncJob, error) {
	return scanJob(q.db.QueryRow(ctx, getGraphSyncJob, id))
}

const markGraphSyncDone = `-- name: MarkGraphSyncDone :execrows
UPDATE graph_sync_jobs
SET status = 'done', attempts = attempts + 1, last_error = '', updated_at = now()
WHERE id = $1
`

func (q *Queries) MarkGraphSyncDone(ctx context.Context, id string) (int64, error) {
	tag, err := q.db.Exec(ctx, markGraphSyncDone, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markGraphSyncFailed = `-- name: MarkGraphSyncFailed :execrows
UPDATE graph_sync_jobs
SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = now()
WHERE id = $1
`

type MarkGraphSyncFailedParams struct {
	ID        string
	Status    string
	LastError string
}

func (q *Queries) MarkGraphSyncFailed(ctx context.Context, arg MarkGraphSyncFailedParams) (int64, error) {
	tag, err := q.db.Exec(ctx, markGraphSyncFailed, arg.ID, arg.Status, arg.LastError)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listStaleGraphSyncJobs = `-- name: ListStaleGraphSyncJobs :many
SELECT ` + jobColumns + `
FROM graph_sync_jobs
WHERE status = 'pending' AND updated_at < $1
ORDER BY updated_at
LIMIT $2
`

func (q *Queries) ListStaleGraphSyncJobs(ctx context.Context, before pgtype.Timestamptz, limit int32) ([]GraphSyncJob, error) {
	rows, err := q.db.Query(ctx, listStaleGraphSyncJobs, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GraphSyncJob
	for rows.Next() {
		i, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const touchGraphSyncJob = `-- name: TouchGraphSyncJob :exec
UPDATE graph_sync_jobs SET updated_at = now() WHERE id = $1
`

func (q *Queries) TouchGraphSyncJob(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, touchGraphSyncJob, id)
	return err
}
