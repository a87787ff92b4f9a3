package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dailybrief/internal/api"
	"dailybrief/internal/generation"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var pollInterval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Schedule a briefing for the current user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				log, err := client.Generate(cmd.Context())
				if err != nil {
					return err
				}
				if wait {
					if timeout <= 0 {
						cfg, _ := ctx.ensureConfig()
						timeout = cfg.RunDeadline() + time.Minute
					}
					log, err = waitForGeneration(cmd.Context(), client, log.ID, pollInterval, timeout)
					if err != nil {
						return err
					}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, log)
				}
				out := cmd.OutOrStdout()
				if !wait {
					fmt.Fprintf(out, "Scheduled generation %s\n", log.ID)
					return nil
				}
				printGeneration(out, log, shouldColorize(out))
				if log.Status == string(generation.StatusFailed) {
					return fmt.Errorf("generation %s failed", log.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the generation completes or fails")
	cmd.Flags().DurationVar(&pollInterval, "poll", 5*time.Second, "Polling interval while waiting")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Maximum time to wait (default: run deadline plus one minute)")
	return cmd
}

// waitForGeneration polls until the generation reaches a terminal status.
func waitForGeneration(ctx context.Context, client *api.Client, id string, interval, timeout time.Duration) (api.GenerationLog, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		log, err := client.GetGeneration(ctx, id)
		if err != nil {
			return api.GenerationLog{}, err
		}
		if status, ok := generation.ParseStatus(log.Status); ok && status.Terminal() {
			return log, nil
		}
		select {
		case <-ctx.Done():
			return log, fmt.Errorf("generation %s still %s: %w", id, log.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}
