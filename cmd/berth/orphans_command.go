package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"berth/internal/api"
)

func newOrphansCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup-orphans",
		Short: "Remove completed back-end downloads no queue row tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CleanupOrphans(cmd.Context(), dryRun)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderOrphans(cmd, resp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List orphans without removing them")
	return cmd
}

func renderOrphans(cmd *cobra.Command, resp api.OrphansResponse) {
	out := cmd.OutOrStdout()
	if len(resp.Orphans) == 0 {
		fmt.Fprintln(out, "No orphaned downloads found")
		return
	}

	rows := make([][]string, 0, len(resp.Orphans))
	for _, orphan := range resp.Orphans {
		rows = append(rows, []string{orphan.ClientID, orphan.DownloadID, orphan.Title})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Client", "Download", "Title"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
	if resp.DryRun {
		fmt.Fprintf(out, "%d orphan(s) would be removed\n", len(resp.Orphans))
	} else {
		fmt.Fprintf(out, "%d orphan(s) removed\n", len(resp.Orphans))
	}
}
