package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/forkd/internal/types"
)

func init() {
	rootCmd.AddCommand(listCmd, jobsCmd, eventsCmd)
	listCmd.Flags().String("status", "", "filter by status (active|running|completed|failed)")
	listCmd.Flags().Bool("unread", false, "only unread forks")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List forks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		status, _ := cmd.Flags().GetString("status")
		unread, _ := cmd.Flags().GetBool("unread")
		forks, err := s.Forks.List(cmd.Context(), types.ForkFilter{
			Status:     types.ForkStatus(status),
			UnreadOnly: unread,
		})
		if err != nil {
			return fmt.Errorf("list forks: %w", err)
		}
		if len(forks) == 0 {
			fmt.Println("No forks.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tREAD\tCREATED\tSESSION")
		for _, f := range forks {
			read := ""
			if f.Read {
				read = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				f.ID, f.Name, f.Status, read,
				f.CreatedAt.Local().Format(time.DateTime), f.ForkSessionID)
		}
		return w.Flush()
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		jobs, err := s.Jobs.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFORK\tSTATUS\tDESCRIPTION")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.ID, j.ForkID, j.Status, truncate(j.Description, 60))
		}
		return w.Flush()
	},
}

var eventsCmd = &cobra.Command{
	Use:     "messages <fork-id>",
	Aliases: []string{"events"},
	Short:   "Show a fork's event log",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		forkID := types.ForkID(args[0])
		events, err := s.Events.ForFork(cmd.Context(), forkID)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No events.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tROLE\tPARENT TOOL USE\tTOOL USES\tAT")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				e.ID, e.Role, e.ParentToolUseID, len(e.ToolUseIDs),
				e.At.Local().Format(time.DateTime))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		pending, err := s.Events.PendingEdges(cmd.Context(), forkID)
		if err != nil {
			return err
		}
		if pending > 0 {
			fmt.Fprintf(os.Stdout, "%d unresolved parent reference(s)\n", pending)
		}
		return nil
	},
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
