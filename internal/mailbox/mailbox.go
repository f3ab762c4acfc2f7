// Package mailbox queues completion notices for parent sessions as
// per-session JSONL files. Notices survive process restarts and are
// consumed destructively: a drain removes what it returns.
package mailbox

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/forkd/internal/types"
)

var _ types.Mailbox = (*Mailbox)(nil)

// Mailbox stores one JSONL file per addressed session under dir.
type Mailbox struct {
	dir string

	mu    sync.Mutex
	locks map[types.SessionID]*sync.Mutex
}

// New creates the mailbox directory if needed.
func New(dir string) (*Mailbox, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("mailbox dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mailbox dir: %w", err)
	}
	return &Mailbox{dir: dir, locks: make(map[types.SessionID]*sync.Mutex)}, nil
}

// Dir returns the directory holding the mailbox files, for watchers.
func (m *Mailbox) Dir() string {
	return m.dir
}

func (m *Mailbox) lockFor(sessionID types.SessionID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

func (m *Mailbox) path(sessionID types.SessionID) string {
	return filepath.Join(m.dir, string(sessionID)+".jsonl")
}

// Enqueue appends one notice to the session's mailbox file.
func (m *Mailbox) Enqueue(sessionID types.SessionID, n types.Notification) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	n.SessionID = sessionID

	line, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(m.path(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open mailbox for %s: %w", sessionID, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write notification for %s: %w", sessionID, err)
	}
	return nil
}

// DrainAll removes and returns every queued notice for the session. The
// file is claimed with an atomic rename before reading, so of two
// concurrent drains exactly one sees each notice and the other gets an
// empty result.
func (m *Mailbox) DrainAll(sessionID types.SessionID) ([]types.Notification, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	claimed := filepath.Join(m.dir,
		fmt.Sprintf(".drain-%s-%s", sessionID, uuid.Must(uuid.NewV7()).String()))
	err := os.Rename(m.path(sessionID), claimed)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim mailbox for %s: %w", sessionID, err)
	}
	defer os.Remove(claimed)

	f, err := os.Open(claimed)
	if err != nil {
		return nil, fmt.Errorf("open claimed mailbox for %s: %w", sessionID, err)
	}
	defer f.Close()

	var notices []types.Notification
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var n types.Notification
		if err := json.Unmarshal([]byte(line), &n); err != nil {
			slog.Warn("dropping malformed mailbox line",
				"session_id", sessionID, "error", err)
			continue
		}
		notices = append(notices, n)
	}
	if err := scanner.Err(); err != nil {
		return notices, fmt.Errorf("read mailbox for %s: %w", sessionID, err)
	}
	return notices, nil
}
