package pgx

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bio-nexus/backend/internal/db"
	"github.com/bio-nexus/backend/pkg/common"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateSession(ctx context.Context, id string) (common.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row, err := s.q.CreateSession(ctx, id)
	if err != nil {
		return common.Session{}, storeErr("create_session", err)
	}
	return sessionFromRow(row), nil
}

func (s *Store) GetSession(ctx context.Context, id string) (common.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row, err := s.q.GetSession(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Session{}, &common.NotFoundError{Kind: "session", ID: id}
	}
	if err != nil {
		return common.Session{}, storeErr("get_session", err)
	}
	return sessionFromRow(row), nil
}

// AppendTurn inserts the turn and bumps the session's last_updated in one
// transaction.
func (s *Store) AppendTurn(ctx context.Context, turn common.ConversationTurn) (common.ConversationTurn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sources, err := json.Marshal(nonNilSources(turn.Sources))
	if err != nil {
		return common.ConversationTurn{}, err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return common.ConversationTurn{}, storeErr("begin", err)
	}
	defer tx.Rollback(ctx)
	qtx := s.q.WithTx(tx)

	if _, err := qtx.GetSession(ctx, turn.SessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ConversationTurn{}, &common.NotFoundError{Kind: "session", ID: turn.SessionID}
		}
		return common.ConversationTurn{}, storeErr("get_session", err)
	}

	row, err := qtx.InsertTurn(ctx, db.InsertTurnParams{
		ID:             turn.ID,
		SessionID:      turn.SessionID,
		Role:           string(turn.Role),
		Content:        turn.Content,
		Sources:        sources,
		Grounded:       turn.Grounded,
		GroundingRatio: turn.GroundingRatio,
	})
	if err != nil {
		return common.ConversationTurn{}, storeErr("insert_turn", err)
	}
	if err := qtx.TouchSession(ctx, turn.SessionID); err != nil {
		return common.ConversationTurn{}, storeErr("touch_session", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return common.ConversationTurn{}, storeErr("commit", err)
	}
	return turnFromRow(row)
}

func (s *Store) ListTurns(ctx context.Context, sessionID string, limit int) ([]common.ConversationTurn, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.q.ListTurns(ctx, sessionID, int32(limit))
	if err != nil {
		return nil, storeErr("list_turns", err)
	}
	out := make([]common.ConversationTurn, 0, len(rows))
	for _, r := range rows {
		t, err := turnFromRow(r)
		if err != nil {
			return nil, storeErr("list_turns", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func sessionFromRow(r db.Session) common.Session {
	return common.Session{
		ID:          r.ID,
		CreatedAt:   fromTime(r.CreatedAt),
		LastUpdated: fromTime(r.LastUpdated),
	}
}

func turnFromRow(r db.ConversationTurn) (common.ConversationTurn, error) {
	t := common.ConversationTurn{
		ID:             r.ID,
		SessionID:      r.SessionID,
		Role:           common.Role(r.Role),
		Content:        r.Content,
		Grounded:       r.Grounded,
		GroundingRatio: r.GroundingRatio,
		CreatedAt:      fromTime(r.CreatedAt),
	}
	if len(r.Sources) > 0 {
		if err := json.Unmarshal(r.Sources, &t.Sources); err != nil {
			return common.ConversationTurn{}, err
		}
	}
	return t, nil
}

func nonNilSources(s []common.SourceRef) []common.SourceRef {
	if s == nil {
		return []common.SourceRef{}
	}
	return s
}
