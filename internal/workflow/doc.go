// Package workflow drives generation runs through their lifecycle.
//
// The Manager owns the state machine scheduled -> fetching -> generating ->
// complete|failed. Every transition is its own conditional write to the
// generation store, so API callers polling a log see each stage as it
// happens. A run aggregates the user's sources, fails fast with no_content
// when nothing came back, then drives one scoped notebook client (closed on
// every path) through notebook creation, source upload, readiness wait,
// audio synthesis, and the completion wait.
//
// Each run is bounded by workflow.run_deadline. A run that outlives it is
// failed with a deadline message instead of being left for an operator. The
// watchdog sweeps logs whose recorded deadline has passed, which recovers
// runs orphaned by a crash. RepairStuck remains as the operator override for
// logs that already have a notebook.
//
// Runs log to the daemon logger and to a per-generation file under
// <log_dir>/generations. Completion and failure are published through the
// notifications service.
package workflow
