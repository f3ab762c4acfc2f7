package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/forkd/internal/types"
)

// Append stores the event and links it into the causal graph in one
// transaction. Linking is synchronous: by the time Append returns, either
// the CHILD_OF edge exists or the parent reference is parked as a pending
// edge awaiting the parent's arrival.
func (s *EventStore) Append(ctx context.Context, event *types.Event) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.ForkID == "" {
		return fmt.Errorf("event fork_id is required")
	}
	if event.ID == "" {
		event.ID = types.NewEventID()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if len(event.Payload) == 0 {
		event.Payload = json.RawMessage("{}")
	}

	toolUses, err := json.Marshal(event.ToolUseIDs)
	if err != nil {
		return fmt.Errorf("encode tool_use_ids: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, fork_id, session_id, role, parent_tool_use_id, tool_use_ids, payload, cost_usd, duration_ms, num_turns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(event.ID), string(event.ForkID), nullString(string(event.SessionID)),
		string(event.Role), nullString(string(event.ParentToolUseID)), string(toolUses),
		string(event.Payload), event.CostUSD, event.DurationMS, event.NumTurns,
		toMillis(event.At))
	if err != nil {
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}

	// Register the tool invocations this event introduces. First writer
	// wins on duplicate IDs.
	for _, toolUseID := range event.ToolUseIDs {
		if toolUseID == "" {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tool_uses (tool_use_id, event_id) VALUES (?, ?)`,
			string(toolUseID), string(event.ID))
		if err != nil {
			return fmt.Errorf("index tool use %s: %w", toolUseID, err)
		}
	}

	if event.ParentToolUseID != "" {
		if err := s.linkToParent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := s.resolvePending(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// linkToParent creates the CHILD_OF edge when the parent event is already
// known, otherwise parks a pending edge for later resolution.
func (s *EventStore) linkToParent(ctx context.Context, tx *sql.Tx, event *types.Event) error {
	var parentID string
	err := tx.QueryRowContext(ctx,
		`SELECT event_id FROM tool_uses WHERE tool_use_id = ?`,
		string(event.ParentToolUseID)).Scan(&parentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO pending_edges (tool_use_id, child_id, fork_id) VALUES (?, ?, ?)`,
			string(event.ParentToolUseID), string(event.ID), string(event.ForkID))
		if err != nil {
			return fmt.Errorf("park pending edge for %s: %w", event.ParentToolUseID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("look up tool use %s: %w", event.ParentToolUseID, err)
	}
	return insertEdge(ctx, tx, string(event.ID), parentID, string(event.ParentToolUseID))
}

// resolvePending attaches earlier-arrived children that were waiting for a
// tool invocation this event introduces.
func (s *EventStore) resolvePending(ctx context.Context, tx *sql.Tx, event *types.Event) error {
	for _, toolUseID := range event.ToolUseIDs {
		if toolUseID == "" {
			continue
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT child_id FROM pending_edges WHERE tool_use_id = ?`,
			string(toolUseID))
		if err != nil {
			return fmt.Errorf("load pending edges for %s: %w", toolUseID, err)
		}
		var childIDs []string
		for rows.Next() {
			var childID string
			if err := rows.Scan(&childID); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan pending edge: %w", err)
			}
			childIDs = append(childIDs, childID)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("iterate pending edges: %w", err)
		}
		_ = rows.Close()

		for _, childID := range childIDs {
			if err := insertEdge(ctx, tx, childID, string(event.ID), string(toolUseID)); err != nil {
				return err
			}
		}
		if len(childIDs) > 0 {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM pending_edges WHERE tool_use_id = ?`, string(toolUseID))
			if err != nil {
				return fmt.Errorf("clear pending edges for %s: %w", toolUseID, err)
			}
		}
	}
	return nil
}

// insertEdge writes a CHILD_OF edge. Event IDs are time-ordered, so a
// parent sorting at or after its child means the stream is corrupt; the
// edge is logged and skipped, never stored.
func insertEdge(ctx context.Context, tx *sql.Tx, childID, parentID, toolUseID string) error {
	if parentID >= childID {
		slog.Warn("skipping event edge with out-of-order parent",
			"child_id", childID, "parent_id", parentID, "tool_use_id", toolUseID)
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO event_edges (child_id, parent_id, tool_use_id, edge_type) VALUES (?, ?, ?, 'CHILD_OF')`,
		childID, parentID, toolUseID)
	if err != nil {
		return fmt.Errorf("insert edge %s -> %s: %w", childID, parentID, err)
	}
	return nil
}

const eventColumns = `id, fork_id, session_id, role, parent_tool_use_id, tool_use_ids, payload, cost_usd, duration_ms, num_turns, created_at`

// Get returns one event by ID.
func (s *EventStore) Get(ctx context.Context, id types.EventID) (*types.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, string(id))
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return event, nil
}

// ForFork returns the fork's events in emission order.
func (s *EventStore) ForFork(ctx context.Context, forkID types.ForkID) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE fork_id = ? ORDER BY id`,
		string(forkID))
	if err != nil {
		return nil, fmt.Errorf("list events for fork %s: %w", forkID, err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ChildrenOf returns the events caused by one tool invocation, in emission
// order. Only resolved edges count; a child still parked in pending_edges
// is invisible here.
func (s *EventStore) ChildrenOf(ctx context.Context, toolUseID types.ToolUseID) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedEventColumns("e")+`
		FROM events e
		JOIN event_edges g ON g.child_id = e.id
		WHERE g.tool_use_id = ?
		ORDER BY e.id`,
		string(toolUseID))
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", toolUseID, err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// PendingEdges counts the fork's unresolved parent references.
func (s *EventStore) PendingEdges(ctx context.Context, forkID types.ForkID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_edges WHERE fork_id = ?`,
		string(forkID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending edges for %s: %w", forkID, err)
	}
	return count, nil
}

func prefixedEventColumns(alias string) string {
	return alias + ".id, " + alias + ".fork_id, " + alias + ".session_id, " +
		alias + ".role, " + alias + ".parent_tool_use_id, " + alias + ".tool_use_ids, " +
		alias + ".payload, " + alias + ".cost_usd, " + alias + ".duration_ms, " +
		alias + ".num_turns, " + alias + ".created_at"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*types.Event, error) {
	var (
		event      types.Event
		sessionID  sql.NullString
		parentID   sql.NullString
		toolUses   string
		payload    string
		costUSD    sql.NullFloat64
		durationMS sql.NullInt64
		numTurns   sql.NullInt64
		createdAt  int64
	)
	err := row.Scan(&event.ID, &event.ForkID, &sessionID, &event.Role,
		&parentID, &toolUses, &payload, &costUSD, &durationMS, &numTurns, &createdAt)
	if err != nil {
		return nil, err
	}
	event.SessionID = types.SessionID(sessionID.String)
	event.ParentToolUseID = types.ToolUseID(parentID.String)
	if err := json.Unmarshal([]byte(toolUses), &event.ToolUseIDs); err != nil {
		return nil, fmt.Errorf("decode tool_use_ids: %w", err)
	}
	event.Payload = json.RawMessage(payload)
	if costUSD.Valid {
		event.CostUSD = &costUSD.Float64
	}
	if durationMS.Valid {
		event.DurationMS = &durationMS.Int64
	}
	if numTurns.Valid {
		event.NumTurns = &numTurns.Int64
	}
	event.At = fromMillis(createdAt)
	return &event, nil
}

func collectEvents(rows *sql.Rows) ([]*types.Event, error) {
	var events []*types.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
