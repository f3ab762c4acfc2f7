package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/forkd/internal/session"
	"github.com/user/forkd/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd, sessionListCmd, sessionRecordCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and record agent sessions",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the detected current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := session.Detect("")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, id)
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		sessions, err := s.Sessions.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFORK\tCREATED")
		for _, sess := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\n", sess.ID, sess.ForkID,
				sess.CreatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var sessionRecordCmd = &cobra.Command{
	Use:   "record <session-id>",
	Short: "Record the current session ID for detection",
	Long: "Writes the session ID to the hook file that fork-me and " +
		"messages read. Wire this into the agent's session-start hook.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.RecordHook(types.SessionID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Recorded session %s.\n", args[0])
		return nil
	},
}
