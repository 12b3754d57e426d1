package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"berth/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and control the download queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Queue(cmd.Context(), statusFilters)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderQueue(cmd, resp)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func renderQueue(cmd *cobra.Command, resp api.QueueResponse) {
	out := cmd.OutOrStdout()
	if len(resp.Items) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}

	rows := make([][]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			item.Title,
			item.ClientID,
			item.Status,
			formatProgress(item.Progress),
			formatSize(item.SizeBytes),
			formatRate(item.DownloadRate),
			formatETA(item.ETASeconds),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Title", "Client", "Status", "Progress", "Size", "Rate", "ETA"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintf(out, "%d item(s)\n", resp.Total)
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.PauseItem(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d paused\n", id)
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.ResumeItem(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d resumed\n", id)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var fromClient bool
	var deleteFiles bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an item from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.RemoveItem(cmd.Context(), id, fromClient, deleteFiles); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d removed\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromClient, "from-client", false, "Also remove the download from its back-end client")
	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "Delete downloaded files when removing from the client")
	return cmd
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ClearFailed(cmd.Context(), olderThan, dryRun)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.DryRun {
					fmt.Fprintf(out, "Would clear %d failed item(s)\n", resp.Count)
				} else {
					fmt.Fprintf(out, "Cleared %d failed item(s)\n", resp.Count)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only clear items that failed at least this long ago")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be cleared without changing anything")
	return cmd
}
