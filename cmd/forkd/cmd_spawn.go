package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/forkd/internal/orchestrator"
	"github.com/user/forkd/internal/session"
	"github.com/user/forkd/internal/types"
)

func init() {
	rootCmd.AddCommand(forkMeCmd, forkCmd, resumeCmd, newCmd)
	for _, c := range []*cobra.Command{forkMeCmd, forkCmd, resumeCmd, newCmd} {
		c.Flags().String("model", "", "model for the worker")
		c.Flags().Int("max-turns", 0, "cap on worker turns")
		c.Flags().String("dir", "", "working directory for the worker")
	}
}

var forkMeCmd = &cobra.Command{
	Use:   "fork-me <message>",
	Short: "Fork the current session into a background worker",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, err := session.Detect("")
		if err != nil {
			return fmt.Errorf("fork-me needs a surrounding session: %w", err)
		}
		return runSpawn(cmd, spawnParams{
			message:         strings.Join(args, " "),
			parentSessionID: parent,
			resumeSessionID: parent,
			forkSession:     true,
		})
	},
}

var forkCmd = &cobra.Command{
	Use:   "fork <session-id> <message>",
	Short: "Fork a specific session into a background worker",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSpawn(cmd, spawnParams{
			message:         strings.Join(args[1:], " "),
			parentSessionID: detectOrEmpty(),
			resumeSessionID: types.SessionID(args[0]),
			forkSession:     true,
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id> <message>",
	Short: "Resume a session in a background worker",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSpawn(cmd, spawnParams{
			message:         strings.Join(args[1:], " "),
			parentSessionID: detectOrEmpty(),
			resumeSessionID: types.SessionID(args[0]),
		})
	},
}

var newCmd = &cobra.Command{
	Use:   "new <message>",
	Short: "Run a task in a fresh background worker",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSpawn(cmd, spawnParams{
			message:         strings.Join(args, " "),
			parentSessionID: detectOrEmpty(),
		})
	},
}

type spawnParams struct {
	message         string
	parentSessionID types.SessionID
	resumeSessionID types.SessionID
	forkSession     bool
}

func detectOrEmpty() types.SessionID {
	id, err := session.Detect("")
	if err != nil {
		return ""
	}
	return id
}

func runSpawn(cmd *cobra.Command, params spawnParams) error {
	cfg := loadConfig()
	setupLogging(cfg)

	model, _ := cmd.Flags().GetString("model")
	maxTurns, _ := cmd.Flags().GetInt("max-turns")
	dir, _ := cmd.Flags().GetString("dir")
	if model == "" {
		model = cfg.Claude.Model
	}
	if maxTurns == 0 {
		maxTurns = cfg.Claude.MaxTurns
	}
	if dir == "" {
		dir, _ = os.Getwd()
	}

	orch, s, err := newOrchestrator(cfg, true)
	if err != nil {
		return err
	}
	defer s.Close()

	fork, err := orch.Spawn(cmd.Context(), orchestrator.SpawnRequest{
		Message:         params.message,
		ParentSessionID: params.parentSessionID,
		ResumeSessionID: params.resumeSessionID,
		ForkSession:     params.forkSession,
		Model:           model,
		WorkingDir:      dir,
		MaxTurns:        maxTurns,
		AllowedTools:    cfg.Claude.AllowedTools,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Forked %s (%s)\n", fork.ID, fork.Name)
	if fork.ForkSessionID != "" {
		fmt.Fprintf(os.Stdout, "Session %s\n", fork.ForkSessionID)
	}

	// Stay alive to ingest the worker's event stream; the worker itself
	// is detached and survives an interrupt here.
	orch.Wait()
	return nil
}
