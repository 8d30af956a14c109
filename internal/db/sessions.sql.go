package db

import "context"

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (id) VALUES ($1)
RETURNING id, created_at, last_updated
`

func (q *Queries) CreateSession(ctx context.Context, id string) (Session, error) {
	row := q.db.QueryRow(ctx, createSession, id)
	var i Session
	err := row.Scan(&i.ID, &i.CreatedAt, &i.LastUpdated)
	return i, err
}

const getSession = `-- name: GetSession :one
SELECT id, created_at, last_updated FROM sessions WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	row := q.db.QueryRow(ctx, getSession, id)
	var i Session
	err := row.Scan(&i.ID, &i.CreatedAt, &i.LastUpdated)
	return i, err
}

const touchSession = `-- name: TouchSession :exec
UPDATE sessions SET last_updated = now() WHERE id = $1
`

func (q *Queries) TouchSession(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, touchSession, id)
	return err
}

const insertTurn = `-- name: InsertTurn :one
INSERT INTO conversation_turns (id, session_id, role, content, sources, grounded, grounding_ratio)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at
`

type InsertTurnParams struct {
	ID             string
	SessionID      string
	Role           string
	Content        string
	Sources        []byte
	Grounded       bool
	GroundingRatio float64
}

func (q *Queries) InsertTurn(ctx context.Context, arg InsertTurnParams) (ConversationTurn, error) {
	row := q.db.QueryRow(ctx, insertTurn,
		arg.ID,
		arg.SessionID,
		arg.Role,
		arg.Content,
		arg.Sources,
		arg.Grounded,
		arg.GroundingRatio,
	)
	i := ConversationTurn{
		ID:             arg.ID,
		SessionID:      arg.SessionID,
		Role:           arg.Role,
		Content:        arg.Content,
		Sources:        arg.Sources,
		Grounded:       arg.Grounded,
		GroundingRatio: arg.GroundingRatio,
	}
	err := row.Scan(&i.CreatedAt)
	return i, err
}

const listTurns = `-- name: ListTurns :many
SELECT id, session_id, role, content, sources, grounded, grounding_ratio, created_at
FROM (
    SELECT *
    FROM conversation_turns
    WHERE session_id = $1
    ORDER BY seq DESC
    LIMIT $2
) recent
ORDER BY seq
`

func (q *Queries) ListTurns(ctx context.Context, sessionID string, limit int32) ([]ConversationTurn, error) {
	rows, err := q.db.Query(ctx, listTurns, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ConversationTurn
	for rows.Next() {
		var i ConversationTurn
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.Role,
			&i.Content,
			&i.Sources,
			&i.Grounded,
			&i.GroundingRatio,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
