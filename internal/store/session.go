package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/forkd/internal/types"
)

// Create records a session. Re-recording an existing session is a no-op:
// the fork back-reference never changes once set.
func (s *SessionStore) Create(ctx context.Context, session *types.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (id, fork_id, created_at) VALUES (?, ?, ?)`,
		string(session.ID), nullString(string(session.ForkID)), toMillis(session.CreatedAt))
	if err != nil {
		return fmt.Errorf("create session %s: %w", session.ID, err)
	}
	return nil
}

// Get returns one session by ID.
func (s *SessionStore) Get(ctx context.Context, id types.SessionID) (*types.Session, error) {
	var (
		session   types.Session
		forkID    sql.NullString
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fork_id, created_at FROM sessions WHERE id = ?`,
		string(id)).Scan(&session.ID, &forkID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	session.ForkID = types.ForkID(forkID.String)
	session.CreatedAt = fromMillis(createdAt)
	return &session, nil
}

// List returns all sessions, newest first.
func (s *SessionStore) List(ctx context.Context) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fork_id, created_at FROM sessions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var (
			session   types.Session
			forkID    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&session.ID, &forkID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.ForkID = types.ForkID(forkID.String)
		session.CreatedAt = fromMillis(createdAt)
		sessions = append(sessions, &session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
