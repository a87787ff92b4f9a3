package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dailybrief/internal/api"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

var titleCaser = cases.Title(language.English)

// printTable writes a rounded table on a terminal and tab-separated rows
// otherwise, so piped output stays easy to cut and grep.
func printTable(out io.Writer, headers []string, rows [][]string, aligns []columnAlignment) {
	if len(headers) == 0 {
		return
	}
	if !shouldColorize(out) {
		fmt.Fprintln(out, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(out, strings.Join(padRow(row, len(headers)), "\t"))
		}
		return
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, columns)
		for i, cell := range padRow(row, columns) {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func padRow(row []string, columns int) []string {
	out := make([]string, columns)
	copy(out, row)
	return out
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statusLabel renders a generation status for humans ("scheduled" -> "Scheduled").
func statusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "Unknown"
	}
	return titleCaser.String(status)
}

func statusKindFor(status string) statusKind {
	switch status {
	case "complete":
		return statusOK
	case "failed":
		return statusError
	default:
		return statusInfo
	}
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func generationRows(logs []api.GenerationLog) [][]string {
	rows := make([][]string, 0, len(logs))
	for _, log := range logs {
		rows = append(rows, []string{
			log.ID,
			statusLabel(log.Status),
			log.ScheduledAt,
			orDash(log.CompletedAt),
			orDash(log.NotebookID),
		})
	}
	return rows
}

var generationHeaders = []string{"ID", "Status", "Scheduled", "Completed", "Notebook"}

// printGeneration renders a single generation log as labelled lines.
func printGeneration(out io.Writer, log api.GenerationLog, colorize bool) {
	fmt.Fprintln(out, renderStatusLine("Generation", statusKindFor(log.Status), statusLabel(log.Status), colorize))
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "ID:", log.ID)
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "User:", log.UserID)
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Scheduled:", log.ScheduledAt)
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Started:", orDash(log.StartedAt))
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Completed:", orDash(log.CompletedAt))
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Notebook:", orDash(log.NotebookID))
	if log.AudioURL != "" {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Audio:", log.AudioURL)
	}
	if used := log.SourcesUsed; used != nil {
		fmt.Fprintf(out, "%s%-*s %d priority, %d feeds, %d topics (%d items)\n",
			statusIndent, statusLabelWidth, "Sources:", used.Priority, used.Feeds, used.Topics, used.Items)
		if len(used.FailedSources) > 0 {
			fmt.Fprintln(out, renderStatusLine("Failed sources", statusWarn, strings.Join(used.FailedSources, ", "), colorize))
		}
	}
	if log.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, log.ErrorMessage, colorize))
	}
}
