package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/forkd/internal/session"
	"github.com/user/forkd/internal/types"
)

func init() {
	rootCmd.AddCommand(notifyCmd, readCmd)
	notifyCmd.Flags().String("session", "", "session to drain (default: detected)")
	readCmd.Flags().Bool("all", false, "mark every fork read")
}

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Drain pending completion notices for a session",
	Long: "Prints and removes the queued notices addressed to the session. " +
		"A notice is delivered at most once; a second call returns nothing.",
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

		notices, err := orch.DrainNotifications(sessionID)
		if err != nil {
			return err
		}
		if len(notices) == 0 {
			fmt.Println("No notices.")
			return nil
		}
		for _, n := range notices {
			fmt.Fprintf(os.Stdout, "[%s] fork %s: %s\n",
				n.At.Local().Format(time.DateTime), n.ForkID, n.Summary)
		}
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read [fork-id]",
	Short: "Mark fork results as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		all, _ := cmd.Flags().GetBool("all")
		switch {
		case all:
			n, err := s.Forks.MarkAllRead(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Marked %d fork(s) read.\n", n)
		case len(args) == 1:
			if err := s.Forks.MarkRead(cmd.Context(), types.ForkID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Marked %s read.\n", args[0])
		default:
			return fmt.Errorf("give a fork id or --all")
		}
		return nil
	},
}
