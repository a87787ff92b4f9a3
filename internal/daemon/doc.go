// Package daemon coordinates the long-running DailyBrief process.
//
// It wires the generation store, source catalog, session manager, and
// workflow manager into a single lifecycle with flock-based locking to
// prevent multiple instances, and serves the HTTP API: generation requests
// and history, provider session management, operator repair, and the daily
// trigger. Every user route takes the caller from the X-User-ID header and,
// when paths.api_token is set, a bearer token. Operator routes require
// paths.admin_token and are refused when it is unset.
//
// Keep orchestration logic here: the generation pipeline lives in workflow
// while the daemon focuses on startup, shutdown, and request handling.
package daemon
