package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"berth/internal/api"
)

func newPollCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Trigger an immediate reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.Poll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Poll requested")
				return nil
			})
		},
	}
}
