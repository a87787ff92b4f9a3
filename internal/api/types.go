package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// HeaderUserID carries the caller identity on every user-scoped request.
const HeaderUserID = "X-User-ID"

// GenerationLog describes one generation attempt in a transport-friendly format.
type GenerationLog struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Status       string       `json:"status"`
	ScheduledAt  string       `json:"scheduled_at"`
	StartedAt    string       `json:"started_at,omitempty"`
	CompletedAt  string       `json:"completed_at,omitempty"`
	DeadlineAt   string       `json:"deadline_at,omitempty"`
	NotebookID   string       `json:"notebook_id,omitempty"`
	SourcesUsed  *SourcesUsed `json:"sources_used,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	AudioURL     string       `json:"audio_url,omitempty"`
}

// SourcesUsed mirrors the per-run aggregation snapshot.
type SourcesUsed struct {
	Priority      int      `json:"priority"`
	Feeds         int      `json:"feeds"`
	Topics        int      `json:"topics"`
	Items         int      `json:"items"`
	FailedSources []string `json:"failed_sources,omitempty"`
}

// GenerationListResponse wraps a user's recent generations, newest first.
type GenerationListResponse struct {
	Generations []GenerationLog `json:"generations"`
}

// CredentialsInfo is the public view of stored provider credentials.
type CredentialsInfo struct {
	AuthenticatedAt string `json:"authenticated_at"`
	CredentialsPath string `json:"credentials_path"`
	Provider        string `json:"provider,omitempty"`
	Partial         bool   `json:"partial,omitempty"`
}

// NotebookStatus reports whether the caller has a provider session.
type NotebookStatus struct {
	Authenticated bool             `json:"authenticated"`
	Credentials   *CredentialsInfo `json:"credentials"`
}

// AuthResult is returned by authenticate, upload, and revoke.
type AuthResult struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	CredentialsStored bool   `json:"credentials_stored"`
}

// UploadCredentialsRequest carries a storage-state document captured by a
// companion app.
type UploadCredentialsRequest struct {
	UserID      string          `json:"user_id"`
	Credentials json.RawMessage `json:"credentials"`
}

// FixStuckResponse reports generations force-completed by the repair route.
type FixStuckResponse struct {
	Fixed         int      `json:"fixed"`
	GenerationIDs []string `json:"generation_ids"`
}

// TestNotificationResponse reports whether the test notification went out.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// CronFailure is one user the daily trigger could not schedule.
type CronFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// CronResponse summarises a daily-generation trigger.
type CronResponse struct {
	Scheduled []GenerationLog `json:"scheduled"`
	Failed    []CronFailure   `json:"failed,omitempty"`
}

// WorkflowStatus summarizes orchestrator state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	ActiveRuns []string       `json:"active_runs"`
	Counts     map[string]int `json:"counts"`
	LastError  string         `json:"last_error,omitempty"`
	LastRun    *GenerationLog `json:"last_run,omitempty"`
	RunLogDir  string         `json:"run_log_dir,omitempty"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"database_path"`
	LockFilePath string             `json:"lock_file_path"`
	LogPath      string             `json:"log_path,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Preflight    []CheckResult      `json:"preflight"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}
