package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	GuardPatterns string `json:"guard_patterns"`
	SweepInterval string `json:"sweep_interval"`
	Claude        struct {
		Bin          string `json:"bin"`
		Model        string `json:"model"`
		MaxTurns     int    `json:"max_turns"`
		AllowedTools string `json:"allowed_tools"`
	} `json:"claude"`
}

// DefaultPath is the config file location under the user's home.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".forkd", "config.json")
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".forkd"),
		MaxConcurrent: 4,
	}
	cfg.LogLevel = "info"
	cfg.SweepInterval = "@every 1m"
	cfg.Claude.Bin = "claude"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if dataDir := os.Getenv("FORKD_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if bin := os.Getenv("FORKD_CLAUDE_BIN"); bin != "" {
		cfg.Claude.Bin = bin
	}
	if model := os.Getenv("FORKD_MODEL"); model != "" {
		cfg.Claude.Model = model
	}
	if raw := os.Getenv("FORKD_MAX_CONCURRENT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid FORKD_MAX_CONCURRENT %q", raw)
		}
		cfg.MaxConcurrent = n
	}

	return cfg, nil
}

// NotifyDir is where mailbox files live.
func (c *Config) NotifyDir() string {
	return filepath.Join(c.DataDir, "notify")
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
