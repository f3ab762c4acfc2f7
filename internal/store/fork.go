package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/forkd/internal/types"
)

// Create inserts a new fork row.
func (s *ForkStore) Create(ctx context.Context, fork *types.Fork) error {
	if fork == nil || fork.ID == "" {
		return fmt.Errorf("fork id is required")
	}
	if fork.Status == "" {
		fork.Status = types.ForkActive
	}
	if fork.CreatedAt.IsZero() {
		fork.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO forks (id, parent_session_id, fork_session_id, name, status, read, pid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(fork.ID), nullString(string(fork.ParentSessionID)),
		nullString(string(fork.ForkSessionID)), fork.Name, string(fork.Status),
		fork.Read, fork.PID, toMillis(fork.CreatedAt))
	if err != nil {
		return fmt.Errorf("create fork %s: %w", fork.ID, err)
	}
	return nil
}

const forkColumns = `id, parent_session_id, fork_session_id, name, status, read, pid, created_at, completed_at`

// Get returns one fork by ID.
func (s *ForkStore) Get(ctx context.Context, id types.ForkID) (*types.Fork, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+forkColumns+` FROM forks WHERE id = ?`, string(id))
	fork, err := scanFork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fork %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get fork %s: %w", id, err)
	}
	return fork, nil
}

// List returns forks matching the filter, newest first.
func (s *ForkStore) List(ctx context.Context, filter types.ForkFilter) ([]*types.Fork, error) {
	query := `SELECT ` + forkColumns + ` FROM forks`
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, `status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.UnreadOnly {
		clauses = append(clauses, `read = 0`)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list forks: %w", err)
	}
	defer rows.Close()

	var forks []*types.Fork
	for rows.Next() {
		fork, err := scanFork(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fork: %w", err)
		}
		forks = append(forks, fork)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forks: %w", err)
	}
	return forks, nil
}

// Transition moves the fork's status only when its current status is one of
// from. Terminal transitions stamp completed_at exactly once. Returns false
// without error when the compare-and-set loses, so repeated completions
// and completion-vs-failure races collapse to a single winner.
func (s *ForkStore) Transition(ctx context.Context, id types.ForkID, from []types.ForkStatus, to types.ForkStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition requires at least one source status")
	}
	args := []any{string(to)}
	query := `UPDATE forks SET status = ?`
	if to.Terminal() {
		query += `, completed_at = COALESCE(completed_at, ?)`
		args = append(args, toMillis(time.Now().UTC()))
	}
	query += ` WHERE id = ? AND status IN (` + placeholders(len(from)) + `)`
	args = append(args, string(id))
	for _, status := range from {
		args = append(args, string(status))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition fork %s to %s: %w", id, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition fork %s: rows affected: %w", id, err)
	}
	return affected == 1, nil
}

// SetSession binds the worker session to the fork. A second call with a
// different session is rejected: the binding is write-once.
func (s *ForkStore) SetSession(ctx context.Context, id types.ForkID, sessionID types.SessionID) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE forks SET fork_session_id = ?
		WHERE id = ? AND (fork_session_id IS NULL OR fork_session_id = '' OR fork_session_id = ?)`,
		string(sessionID), string(id), string(sessionID))
	if err != nil {
		return fmt.Errorf("set session for fork %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set session for fork %s: rows affected: %w", id, err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("fork %s already bound to a different session", id)
	}
	return nil
}

// SetPID records the worker's process ID for liveness checks.
func (s *ForkStore) SetPID(ctx context.Context, id types.ForkID, pid int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE forks SET pid = ? WHERE id = ?`, pid, string(id))
	if err != nil {
		return fmt.Errorf("set pid for fork %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set pid for fork %s: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("fork %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkRead flags one fork's result as seen.
func (s *ForkStore) MarkRead(ctx context.Context, id types.ForkID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE forks SET read = 1 WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("mark fork %s read: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark fork %s read: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("fork %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkAllRead flags every unread fork and returns how many changed.
func (s *ForkStore) MarkAllRead(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE forks SET read = 1 WHERE read = 0`)
	if err != nil {
		return 0, fmt.Errorf("mark all forks read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all forks read: rows affected: %w", err)
	}
	return int(affected), nil
}

func scanFork(row rowScanner) (*types.Fork, error) {
	var (
		fork            types.Fork
		parentSessionID sql.NullString
		forkSessionID   sql.NullString
		name            sql.NullString
		createdAt       int64
		completedAt     sql.NullInt64
	)
	err := row.Scan(&fork.ID, &parentSessionID, &forkSessionID, &name,
		&fork.Status, &fork.Read, &fork.PID, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}
	fork.ParentSessionID = types.SessionID(parentSessionID.String)
	fork.ForkSessionID = types.SessionID(forkSessionID.String)
	fork.Name = name.String
	fork.CreatedAt = fromMillis(createdAt)
	if completedAt.Valid {
		at := fromMillis(completedAt.Int64)
		fork.CompletedAt = &at
	}
	return &fork, nil
}
