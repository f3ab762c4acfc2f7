package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/forkd/internal/claude"
	"github.com/user/forkd/internal/config"
	"github.com/user/forkd/internal/guard"
	"github.com/user/forkd/internal/mailbox"
	"github.com/user/forkd/internal/orchestrator"
	"github.com/user/forkd/internal/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "forkd",
	Short: "Delegate side tasks to detached agent workers",
	Long: "forkd spawns detached claude workers for side tasks, records their " +
		"activity in an event graph, and delivers completion notices back to " +
		"the session that spawned them.",
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return store.Open(store.DefaultPath(cfg.DataDir))
}

// newOrchestrator wires the shared pieces. withLauncher is false for
// commands that only read or settle state.
func newOrchestrator(cfg *config.Config, withLauncher bool) (*orchestrator.Orchestrator, *store.Store, error) {
	s, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	m, err := mailbox.New(cfg.NotifyDir())
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	g, err := guard.NewFromFile(cfg.GuardPatterns)
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}

	opts := orchestrator.Options{
		Forks:         s.Forks,
		Sessions:      s.Sessions,
		Jobs:          s.Jobs,
		Events:        s.Events,
		Mailbox:       m,
		Guard:         g,
		MaxConcurrent: cfg.MaxConcurrent,
		Log:           slog.Default(),
	}
	if withLauncher {
		opts.Launcher = claude.NewLauncher(cfg.Claude.Bin, slog.Default())
	}
	orch, err := orchestrator.New(opts)
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return orch, s, nil
}
