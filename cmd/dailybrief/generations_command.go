package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dailybrief/internal/api"
)

func newGenerationsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generations",
		Aliases: []string{"gen"},
		Short:   "Inspect generation history",
	}
	cmd.AddCommand(newGenerationsListCommand(ctx))
	cmd.AddCommand(newGenerationsShowCommand(ctx))
	return cmd
}

func newGenerationsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				logs, err := client.ListGenerations(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.GenerationListResponse{Generations: logs})
				}
				out := cmd.OutOrStdout()
				if len(logs) == 0 {
					fmt.Fprintln(out, "No generations yet")
					return nil
				}
				printTable(out, generationHeaders, generationRows(logs), nil)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of generations (server default 10)")
	return cmd
}

func newGenerationsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *api.Client) error {
				log, err := client.GetGeneration(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, log)
				}
				out := cmd.OutOrStdout()
				printGeneration(out, log, shouldColorize(out))
				return nil
			})
		},
	}
}
