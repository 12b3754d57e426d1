package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"berth/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent grab and import history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderHistory(cmd, resp)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Maximum number of records")
	return cmd
}

func renderHistory(cmd *cobra.Command, resp api.HistoryResponse) {
	out := cmd.OutOrStdout()
	if len(resp.Records) == 0 {
		fmt.Fprintln(out, "No history yet")
		return
	}

	rows := make([][]string, 0, len(resp.Records))
	for _, record := range resp.Records {
		detail := record.ImportedPath
		if record.ErrorMessage != "" {
			detail = record.ErrorMessage
		}
		rows = append(rows, []string{
			formatTimestamp(record.CreatedAt),
			record.EventType,
			record.Title,
			record.ClientID,
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"When", "Event", "Title", "Client", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}
