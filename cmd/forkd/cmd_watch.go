package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/forkd/internal/session"
	"github.com/user/forkd/internal/types"
	"github.com/user/forkd/internal/watch"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("session", "", "session to watch (default: detected)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a session's completion notices as they arrive",
	Long: "Watches the mailbox and prints each notice the moment a fork " +
		"settles. Also sweeps forks whose worker process has died.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		sessionID := types.SessionID(cmd.Flag("session").Value.String())
		if sessionID == "" {
			detected, err := session.Detect("")
			if err != nil {
				return fmt.Errorf("no session given and none detected: %w", err)
			}
			sessionID = detected
		}

		orch, s, err := newOrchestrator(cfg, false)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := &watch.Watcher{
			Dir:           cfg.NotifyDir(),
			SessionID:     sessionID,
			Drainer:       orch,
			Sweeper:       orch,
			SweepSchedule: cfg.SweepInterval,
			Sink: func(n types.Notification) {
				fmt.Fprintf(os.Stdout, "[%s] fork %s: %s\n",
					n.At.Local().Format(time.DateTime), n.ForkID, n.Summary)
			},
		}
		err = w.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
