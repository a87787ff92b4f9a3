// Package generation persists GenerationLog records, the append-only history
// of podcast generation attempts.
//
// A log starts in scheduled and only moves forward:
// scheduled -> fetching -> generating -> complete, with failed reachable from
// any non-terminal status. The store enforces this with conditional updates,
// so the database never holds a skipped or reversed transition even when two
// writers race. Operator repair (ForceCompleteStuck) and deadline expiry
// (FailExpired) are the only bulk writers.
package generation
