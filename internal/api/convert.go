package api

import (
	"slices"
	"time"

	"dailybrief/internal/credentials"
	"dailybrief/internal/deps"
	"dailybrief/internal/generation"
	"dailybrief/internal/preflight"
	"dailybrief/internal/workflow"
)

// FromLog converts a generation log to its API representation.
func FromLog(log *generation.Log) GenerationLog {
	if log == nil {
		return GenerationLog{}
	}
	dto := GenerationLog{
		ID:           log.ID,
		UserID:       log.UserID,
		Status:       string(log.Status),
		ScheduledAt:  FormatTime(log.ScheduledAt),
		StartedAt:    formatOptional(log.StartedAt),
		CompletedAt:  formatOptional(log.CompletedAt),
		DeadlineAt:   formatOptional(log.DeadlineAt),
		NotebookID:   log.NotebookID,
		ErrorMessage: log.ErrorMessage,
		AudioURL:     log.AudioURL,
	}
	if used := log.SourcesUsed; used != nil {
		dto.SourcesUsed = &SourcesUsed{
			Priority:      used.Priority,
			Feeds:         used.Feeds,
			Topics:        used.Topics,
			Items:         used.Items,
			FailedSources: slices.Clone(used.FailedSources),
		}
	}
	return dto
}

// FromLogs converts a slice of generation logs, preserving order.
func FromLogs(logs []*generation.Log) []GenerationLog {
	out := make([]GenerationLog, 0, len(logs))
	for _, log := range logs {
		out = append(out, FromLog(log))
	}
	return out
}

// FromMetadata converts stored credential metadata to the status payload.
func FromMetadata(meta *credentials.Metadata) NotebookStatus {
	if meta == nil {
		return NotebookStatus{}
	}
	return NotebookStatus{
		Authenticated: true,
		Credentials: &CredentialsInfo{
			AuthenticatedAt: FormatTime(meta.AuthenticatedAt),
			CredentialsPath: meta.CredentialsPath,
			Provider:        meta.Provider,
			Partial:         meta.Partial,
		},
	}
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	counts := make(map[string]int, len(generation.AllStatuses()))
	for _, status := range generation.AllStatuses() {
		counts[string(status)] = summary.Counts[status]
	}
	wf := WorkflowStatus{
		Running:    summary.Running,
		ActiveRuns: slices.Clone(summary.ActiveRuns),
		Counts:     counts,
		LastError:  summary.LastError,
		RunLogDir:  summary.RunLogDir,
	}
	if wf.ActiveRuns == nil {
		wf.ActiveRuns = []string{}
	}
	if summary.LastRun != nil {
		last := FromLog(summary.LastRun)
		wf.LastRun = &last
	}
	return wf
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromDependencies converts binary dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime reverses FormatTime. Empty or malformed values yield the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339, value); err != nil {
			return time.Time{}
		}
	}
	return parsed
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}
