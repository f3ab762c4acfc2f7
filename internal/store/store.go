// Package store persists forks, sessions, jobs, and the append-only event
// graph in a single project-local SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the durable backing store. One Store per data directory; all
// writers in a process share it. Per-entity views expose the actual
// operations.
type Store struct {
	db *sql.DB

	Events   *EventStore
	Forks    *ForkStore
	Sessions *SessionStore
	Jobs     *JobStore
}

// EventStore holds the append-only event graph.
type EventStore struct {
	db *sql.DB
}

// ForkStore holds fork lifecycle rows.
type ForkStore struct {
	db *sql.DB
}

// SessionStore holds session rows.
type SessionStore struct {
	db *sql.DB
}

// JobStore holds job rows.
type JobStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	fork_id TEXT NOT NULL,
	session_id TEXT,
	role TEXT NOT NULL,
	parent_tool_use_id TEXT,
	tool_use_ids TEXT NOT NULL DEFAULT '[]',
	payload TEXT NOT NULL,
	cost_usd REAL,
	duration_ms INTEGER,
	num_turns INTEGER,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_fork_id ON events(fork_id);

CREATE TABLE IF NOT EXISTS tool_uses (
	tool_use_id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_edges (
	child_id TEXT NOT NULL,
	parent_id TEXT NOT NULL,
	tool_use_id TEXT NOT NULL,
	edge_type TEXT NOT NULL DEFAULT 'CHILD_OF',
	PRIMARY KEY (child_id, parent_id, edge_type)
);

CREATE INDEX IF NOT EXISTS idx_event_edges_tool_use ON event_edges(tool_use_id);

CREATE TABLE IF NOT EXISTS pending_edges (
	tool_use_id TEXT NOT NULL,
	child_id TEXT NOT NULL,
	fork_id TEXT NOT NULL,
	PRIMARY KEY (tool_use_id, child_id)
);

CREATE INDEX IF NOT EXISTS idx_pending_edges_fork ON pending_edges(fork_id);

CREATE TABLE IF NOT EXISTS forks (
	id TEXT PRIMARY KEY,
	parent_session_id TEXT,
	fork_session_id TEXT,
	name TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	read INTEGER NOT NULL DEFAULT 0,
	pid INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_forks_status ON forks(status);
CREATE INDEX IF NOT EXISTS idx_forks_read ON forks(read);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	fork_id TEXT,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	fork_id TEXT NOT NULL,
	session_id TEXT,
	output TEXT,
	created_at INTEGER NOT NULL,
	completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_jobs_fork_id ON jobs(fork_id);
`

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	// modernc.org/sqlite passes pragmas via _pragma=name(value); the
	// mattn-style _journal_mode keys are silently ignored by this driver.
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	store := &Store{db: db}
	store.Events = &EventStore{db: db}
	store.Forks = &ForkStore{db: db}
	store.Sessions = &SessionStore{db: db}
	store.Jobs = &JobStore{db: db}
	return store, nil
}

// DefaultPath returns the database location inside a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "forkd.db")
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// placeholders returns "?, ?, ..." with n slots, for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
