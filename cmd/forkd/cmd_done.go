package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/forkd/internal/types"
)

func init() {
	rootCmd.AddCommand(doneCmd, failCmd)
}

var doneCmd = &cobra.Command{
	Use:   "done <fork-id> <summary>",
	Short: "Report a fork's task as completed",
	Long: "Run by the worker as its final action. Marks the fork completed, " +
		"stores the summary on its job, and queues a notice for the parent " +
		"session. Safe to repeat; only the first report wins.",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		orch, s, err := newOrchestrator(cfg, false)
		if err != nil {
			return err
		}
		defer s.Close()

		forkID := types.ForkID(args[0])
		summary := strings.Join(args[1:], " ")
		if err := orch.Complete(cmd.Context(), forkID, summary); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Fork %s completed.\n", forkID)
		return nil
	},
}

var failCmd = &cobra.Command{
	Use:   "fail <fork-id> [reason]",
	Short: "Report a fork's task as failed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		orch, s, err := newOrchestrator(cfg, false)
		if err != nil {
			return err
		}
		defer s.Close()

		forkID := types.ForkID(args[0])
		reason := strings.Join(args[1:], " ")
		if err := orch.MarkFailed(cmd.Context(), forkID, reason); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Fork %s failed.\n", forkID)
		return nil
	},
}
