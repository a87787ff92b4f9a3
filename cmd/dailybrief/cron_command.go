package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dailybrief/internal/api"
)

func newCronCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Schedule a briefing for every user with daily generation enabled",
		Long: "Calls the daemon's daily trigger. Intended for a crontab or systemd timer;\n" +
			"requires paths.admin_token.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.TriggerDaily(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Scheduled %d generation(s)\n", len(resp.Scheduled))
				for _, log := range resp.Scheduled {
					fmt.Fprintln(out, renderStatusLine(log.UserID, statusOK, log.ID, colorize))
				}
				for _, failure := range resp.Failed {
					fmt.Fprintln(out, renderStatusLine(failure.UserID, statusError, failure.Error, colorize))
				}
				if len(resp.Failed) > 0 {
					return fmt.Errorf("%d user(s) could not be scheduled", len(resp.Failed))
				}
				return nil
			})
		},
	}
}
