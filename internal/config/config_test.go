package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxConcurrent != 4 {
		t.Errorf("default max_concurrent = %d", cfg.MaxConcurrent)
	}
	if cfg.Claude.Bin != "claude" {
		t.Errorf("default bin = %q", cfg.Claude.Bin)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected defaults written to disk: %v", err)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"max_concurrent": 9, "claude": {"model": "opus"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxConcurrent != 9 {
		t.Errorf("max_concurrent = %d", cfg.MaxConcurrent)
	}
	if cfg.Claude.Model != "opus" {
		t.Errorf("model = %q", cfg.Claude.Model)
	}
	// Untouched fields keep their defaults.
	if cfg.LogLevel != "info" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("FORKD_DATA_DIR", "/tmp/forkd-test")
	t.Setenv("FORKD_MODEL", "sonnet")
	t.Setenv("FORKD_MAX_CONCURRENT", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/forkd-test" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.Claude.Model != "sonnet" {
		t.Errorf("model = %q", cfg.Claude.Model)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("max_concurrent = %d", cfg.MaxConcurrent)
	}
}

func TestLoadRejectsBadMaxConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("FORKD_MAX_CONCURRENT", "zero")
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-numeric override")
	}
}
