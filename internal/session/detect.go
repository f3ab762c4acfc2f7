// Package session discovers which interactive agent session the current
// command is running inside, so spawned forks know whom to notify.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/forkd/internal/types"
)

// ErrNoSession means no surrounding agent session could be found. Spawning
// still works; completion notices just have nowhere to go.
var ErrNoSession = errors.New("no active agent session detected")

// hookPath is where a session-start hook drops the current session ID.
// Variable so tests can point it somewhere writable.
var hookPath = filepath.Join(os.TempDir(), ".forkd-session")

// Detect returns the surrounding agent session ID. The hook file wins;
// otherwise the directory tree is walked upward from startDir looking for
// .claude/current-session.json.
func Detect(startDir string) (types.SessionID, error) {
	if id := fromHookFile(); id != "" {
		return id, nil
	}
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
	}
	if id := fromProjectFile(startDir); id != "" {
		return id, nil
	}
	if home := os.Getenv("HOME"); home != "" {
		if id := readSessionFile(filepath.Join(home, ".claude", "current-session.json")); id != "" {
			return id, nil
		}
	}
	return "", ErrNoSession
}

func fromHookFile() types.SessionID {
	data, err := os.ReadFile(hookPath)
	if err != nil {
		return ""
	}
	return types.SessionID(strings.TrimSpace(string(data)))
}

// fromProjectFile walks from dir to the filesystem root, stopping at the
// first .claude/current-session.json it can parse.
func fromProjectFile(dir string) types.SessionID {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, ".claude", "current-session.json")
		if id := readSessionFile(path); id != "" {
			return id
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func readSessionFile(path string) types.SessionID {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var file struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return ""
	}
	return types.SessionID(strings.TrimSpace(file.SessionID))
}

// RecordHook writes the session ID to the hook file. Called by the
// session-start hook installed into the agent's settings.
func RecordHook(id types.SessionID) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	tmp := hookPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(string(id)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write session hook file: %w", err)
	}
	if err := os.Rename(tmp, hookPath); err != nil {
		return fmt.Errorf("replace session hook file: %w", err)
	}
	return nil
}
