package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dailybrief/internal/api"
	"dailybrief/internal/generation"
	"dailybrief/internal/preflight"
)

type statusReport struct {
	Daemon      *api.DaemonStatus      `json:"daemon,omitempty"`
	DaemonError string                 `json:"daemon_error,omitempty"`
	Local       []api.CheckResult      `json:"local_checks"`
	LocalDeps   []api.DependencyStatus `json:"local_dependencies"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and run local preflight checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var report statusReport
			err = ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				report.Daemon = &status
				return nil
			})
			if err != nil {
				report.DaemonError = err.Error()
			}

			checks := preflight.RunAll(cmd.Context(), cfg, preflight.Options{SkipNetwork: offline})
			report.Local = api.FromChecks(checks)
			report.LocalDeps = api.FromDependencies(preflight.CheckSystemDeps(cfg))

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printStatusReport(cmd, report)
			}
			if failed := preflight.Failed(checks); len(failed) > 0 {
				names := make([]string, 0, len(failed))
				for _, f := range failed {
					names = append(names, f.Name)
				}
				return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
			}
			if report.Daemon == nil {
				return errors.New("daemon not reachable")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip provider health checks")
	return cmd
}

func printStatusReport(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	emit := func(lines ...string) {
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}

	emit(renderSectionHeader("Daemon", colorize)...)
	if report.Daemon == nil {
		emit(renderStatusLine("Daemon", statusError, "Not running ("+report.DaemonError+")", colorize))
	} else {
		d := report.Daemon
		emit(renderStatusLine("Daemon", statusOK, "Running (pid "+strconv.Itoa(d.PID)+")", colorize))
		emit(renderStatusLine("Database", statusInfo, d.DatabasePath, colorize))
		if d.LogPath != "" {
			emit(renderStatusLine("Log", statusInfo, d.LogPath, colorize))
		}
		emit(workflowLines(d.Workflow, colorize)...)
	}
	emit("")

	emit(renderSectionHeader("Preflight", colorize)...)
	emit(checkLines(report.Local, colorize)...)
	emit("")

	emit(renderSectionHeader("Dependencies", colorize)...)
	emit(dependencyLines(report.LocalDeps, colorize)...)
}

func workflowLines(status api.WorkflowStatus, colorize bool) []string {
	var lines []string
	kind := statusOK
	state := "Running"
	if !status.Running {
		kind, state = statusWarn, "Stopped"
	}
	if len(status.ActiveRuns) > 0 {
		state += fmt.Sprintf(", %d active", len(status.ActiveRuns))
	}
	lines = append(lines, renderStatusLine("Orchestrator", kind, state, colorize))

	var counts []string
	for _, s := range generation.AllStatuses() {
		if n := status.Counts[string(s)]; n > 0 {
			counts = append(counts, fmt.Sprintf("%s %d", statusLabel(string(s)), n))
		}
	}
	if len(counts) > 0 {
		lines = append(lines, renderStatusLine("Generations", statusInfo, strings.Join(counts, ", "), colorize))
	}
	if last := status.LastRun; last != nil {
		lines = append(lines, renderStatusLine("Last run", statusKindFor(last.Status), last.ID+" "+statusLabel(last.Status), colorize))
	}
	if status.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	return lines
}
