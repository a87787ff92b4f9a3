package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dailybrief/internal/api"
	"dailybrief/internal/session"
)

func newNotebookCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notebooklm",
		Aliases: []string{"nb"},
		Short:   "Manage the NotebookLM session",
	}
	cmd.AddCommand(newNotebookStatusCommand(ctx))
	cmd.AddCommand(newNotebookLoginCommand(ctx))
	cmd.AddCommand(newNotebookLogoutCommand(ctx))
	cmd.AddCommand(newNotebookUploadCommand(ctx))
	return cmd
}

func newNotebookStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether credentials are stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.NotebookStatus(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if !status.Authenticated {
					fmt.Fprintln(out, renderStatusLine("NotebookLM", statusWarn, "Not authenticated (run `dailybrief notebooklm login`)", colorize))
					return nil
				}
				fmt.Fprintln(out, renderStatusLine("NotebookLM", statusOK, "Authenticated", colorize))
				if creds := status.Credentials; creds != nil {
					fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Since:", creds.AuthenticatedAt)
					fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Stored at:", creds.CredentialsPath)
					fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Partial:", yesNo(creds.Partial))
				}
				return nil
			})
		},
	}
}

func newNotebookLoginCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Open a browser on the daemon host and sign in to Google",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				if !ctx.jsonOutput() {
					fmt.Fprintln(out, "Waiting for the Google sign-in to finish in the daemon's browser window...")
				}
				result, err := client.Authenticate(cmd.Context())
				if err != nil {
					return err
				}
				return printAuthResult(cmd, ctx, "Login", result)
			})
		},
	}
}

func newNotebookLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete stored NotebookLM credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.Revoke(cmd.Context())
				if err != nil {
					return err
				}
				return printAuthResult(cmd, ctx, "Logout", result)
			})
		},
	}
}

func newNotebookUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <storage-state.json>",
		Short: "Upload a browser storage state captured elsewhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read credentials file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("%s is not valid JSON", args[0])
			}
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.UploadCredentials(cmd.Context(), json.RawMessage(data))
				if err != nil {
					return err
				}
				return printAuthResult(cmd, ctx, "Upload", result)
			})
		},
	}
}

// printAuthResult reports a session outcome. A login that timed out after
// saving a partial state still returns 200 and is shown as a warning.
func printAuthResult(cmd *cobra.Command, ctx *commandContext, label string, result api.AuthResult) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, result)
	}
	out := cmd.OutOrStdout()
	kind := statusOK
	switch result.Status {
	case session.StatusTimeout:
		kind = statusWarn
	case session.StatusError:
		kind = statusError
	}
	message := result.Message
	if result.CredentialsStored {
		message += " (credentials stored)"
	}
	fmt.Fprintln(out, renderStatusLine(label, kind, message, shouldColorize(out)))
	return nil
}
