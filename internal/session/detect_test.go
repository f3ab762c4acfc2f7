package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func useHookPath(t *testing.T, path string) {
	t.Helper()
	old := hookPath
	hookPath = path
	t.Cleanup(func() { hookPath = old })
}

func TestDetectPrefersHookFile(t *testing.T) {
	dir := t.TempDir()
	useHookPath(t, filepath.Join(dir, "hook"))
	if err := RecordHook("hook-session"); err != nil {
		t.Fatalf("record hook: %v", err)
	}

	// A project file exists too, but the hook wins.
	project := filepath.Join(dir, "project")
	writeSessionFile(t, project, "project-session")

	id, err := Detect(project)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if id != "hook-session" {
		t.Errorf("expected hook-session, got %s", id)
	}
}

func TestDetectWalksUpForProjectFile(t *testing.T) {
	dir := t.TempDir()
	useHookPath(t, filepath.Join(dir, "absent-hook"))
	t.Setenv("HOME", filepath.Join(dir, "empty-home"))

	project := filepath.Join(dir, "repo")
	writeSessionFile(t, project, "project-session")
	nested := filepath.Join(project, "internal", "deeply", "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	id, err := Detect(nested)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if id != "project-session" {
		t.Errorf("expected project-session, got %s", id)
	}
}

func TestDetectNoSession(t *testing.T) {
	dir := t.TempDir()
	useHookPath(t, filepath.Join(dir, "absent-hook"))
	t.Setenv("HOME", filepath.Join(dir, "empty-home"))

	_, err := Detect(dir)
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestDetectFallsBackToHome(t *testing.T) {
	dir := t.TempDir()
	useHookPath(t, filepath.Join(dir, "absent-hook"))
	home := filepath.Join(dir, "home")
	t.Setenv("HOME", home)
	writeSessionFile(t, home, "home-session")

	id, err := Detect(filepath.Join(dir, "elsewhere"))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if id != "home-session" {
		t.Errorf("expected home-session, got %s", id)
	}
}

func writeSessionFile(t *testing.T, projectDir, sessionID string) {
	t.Helper()
	claudeDir := filepath.Join(projectDir, ".claude")
	if err := os.MkdirAll(claudeDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := `{"sessionId":"` + sessionID + `"}`
	path := filepath.Join(claudeDir, "current-session.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
