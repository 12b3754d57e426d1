package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"berth/internal/api"
)

const (
	ansiBlue  = "\x1b[34m"
	ansiReset = "\x1b[0m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				renderStatus(cmd, status)
				return nil
			})
		},
	}
}

func renderStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()

	header := "Berth Daemon"
	if shouldColorize(out) {
		header = ansiBlue + header + ansiReset
	}
	fmt.Fprintln(out, header)
	fmt.Fprintf(out, "Running:   %s (pid %d)\n", yesNo(status.Running), status.PID)
	fmt.Fprintf(out, "Queue DB:  %s\n", status.QueueDBPath)
	fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)
	fmt.Fprintf(out, "Queue:     %d items\n", status.QueueTotal)

	if len(status.QueueCounts) > 0 {
		statuses := make([]string, 0, len(status.QueueCounts))
		for name := range status.QueueCounts {
			statuses = append(statuses, name)
		}
		sort.Strings(statuses)
		parts := make([]string, 0, len(statuses))
		for _, name := range statuses {
			parts = append(parts, fmt.Sprintf("%s=%d", name, status.QueueCounts[name]))
		}
		fmt.Fprintf(out, "Counts:    %s\n", strings.Join(parts, " "))
	}

	if len(status.Clients) > 0 {
		rows := make([][]string, 0, len(status.Clients))
		for _, client := range status.Clients {
			rows = append(rows, []string{client.ClientID, client.Health})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Client", "Health"},
			rows,
			[]columnAlignment{alignLeft, alignLeft},
		))
	}
}
