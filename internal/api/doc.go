// Package api defines the wire-format types, converters, and HTTP client for
// the daemon API. It translates internal generation, credential, and
// workflow models into transport-friendly DTOs so the CLI and companion apps
// never couple to internal types.
//
// # Key Types
//
// GenerationLog: transport representation of a generation attempt.
//
// NotebookStatus / AuthResult / UploadCredentialsRequest: provider session
// payloads.
//
// DaemonStatus: workflow state, preflight checks, and dependencies.
//
// Client: typed calls for every route, sending the bearer token and the
// X-User-ID header. Admin and cron routes carry the admin token instead.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the payloads companion apps already
// send. Timestamps use RFC3339 with milliseconds. Non-2xx responses decode
// into HTTPError with the server's kind and hint when present.
package api
