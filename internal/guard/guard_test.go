package guard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBlocksForkInstructions(t *testing.T) {
	g := New()
	blocked := []string{
		"run forkd fork to parallelize this",
		"please FORKD   FORK the tests",
		"use fork-me on the current session",
		"spawn a fork for each file",
		"forkd list",
		"fork yourself and investigate both paths",
	}
	for _, message := range blocked {
		if err := g.Check(message); !errors.Is(err, ErrCascadeRejected) {
			t.Errorf("expected %q to be rejected, got %v", message, err)
		}
	}
}

func TestCheckAllowsOrdinaryMessages(t *testing.T) {
	g := New()
	allowed := []string{
		"summarize the test failures in this repo",
		"the fork in the road metaphor needs rewording",
		"look at internal/forkdetect and explain it",
		"refactor the git fork handling in sync.go",
	}
	for _, message := range allowed {
		if err := g.Check(message); err != nil {
			t.Errorf("expected %q to pass, got %v", message, err)
		}
	}
}

func TestNewFromFileExtendsBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.yaml")
	content := "patterns:\n  - \"run the delegation tool\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	g, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("new from file: %v", err)
	}
	if err := g.Check("now Run The Delegation Tool please"); !errors.Is(err, ErrCascadeRejected) {
		t.Errorf("expected file pattern to match, got %v", err)
	}
	if err := g.Check("forkd fork this"); !errors.Is(err, ErrCascadeRejected) {
		t.Errorf("expected built-ins to survive, got %v", err)
	}
}

func TestNewFromFileMissingFile(t *testing.T) {
	g, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected missing file to be fine, got %v", err)
	}
	if err := g.Check("forkd fork"); !errors.Is(err, ErrCascadeRejected) {
		t.Errorf("expected built-ins, got %v", err)
	}
}
