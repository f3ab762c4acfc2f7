// Package guard rejects fork requests whose message would make the worker
// spawn forks of its own. Matching is deliberately broad: a false positive
// blocks one spawn, a false negative risks unbounded recursive workers.
package guard

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrCascadeRejected marks a message blocked by the cascade guard.
var ErrCascadeRejected = errors.New("message would instruct the worker to spawn forks")

// builtinPatterns are message substrings that indicate the worker is being
// told to use the fork machinery itself.
var builtinPatterns = []string{
	"forkd fork",
	"forkd resume",
	"forkd new",
	"fork-me",
	"fork yourself",
	"spawn a fork",
	"spawn fork",
	"create a fork",
}

// Guard holds the active deny-list.
type Guard struct {
	patterns []string
}

// New returns a guard with the built-in deny-list.
func New() *Guard {
	return &Guard{patterns: append([]string(nil), builtinPatterns...)}
}

// NewFromFile extends the built-ins with patterns from a YAML file of the
// form:
//
//	patterns:
//	  - "run the delegation tool"
//
// A missing file yields the built-ins alone.
func NewFromFile(path string) (*Guard, error) {
	g := New()
	if path == "" {
		return g, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guard patterns: %w", err)
	}
	var file struct {
		Patterns []string `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse guard patterns: %w", err)
	}
	for _, p := range file.Patterns {
		p = strings.TrimSpace(p)
		if p != "" {
			g.patterns = append(g.patterns, strings.ToLower(p))
		}
	}
	return g, nil
}

// Check returns ErrCascadeRejected when the message matches the deny-list.
// Case-insensitive, whitespace-normalized substring matching.
func (g *Guard) Check(message string) error {
	normalized := normalize(message)
	for _, p := range g.patterns {
		if strings.Contains(normalized, normalize(p)) {
			return fmt.Errorf("%w (matched %q)", ErrCascadeRejected, p)
		}
	}
	// A message leading with the binary name is a command for the worker
	// to run, whatever follows.
	if first, _, _ := strings.Cut(normalized, " "); first == "forkd" {
		return fmt.Errorf("%w (message starts with forkd)", ErrCascadeRejected)
	}
	return nil
}

// normalize lowercases and collapses all whitespace runs to single spaces,
// so "forkd   FORK" and "forkd\nfork" both match "forkd fork".
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
