package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dailybrief/internal/api"
)

func newAdminCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands (require paths.admin_token)",
	}
	cmd.AddCommand(newFixStuckCommand(ctx))
	cmd.AddCommand(newTestNotifyCommand(ctx))
	return cmd
}

func newFixStuckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fix-stuck",
		Short: "Fail or complete generations left in a non-terminal state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.FixStuck(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.Fixed == 0 {
					fmt.Fprintln(out, "No stuck generations")
					return nil
				}
				fmt.Fprintf(out, "Repaired %d generation(s): %s\n", resp.Fixed, strings.Join(resp.GenerationIDs, ", "))
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.TestNotification(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				kind := statusOK
				if !resp.Sent {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Notification", kind, resp.Message, shouldColorize(out)))
				return nil
			})
		},
	}
}
