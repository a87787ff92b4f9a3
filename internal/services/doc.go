// Package services defines shared utilities consumed by the generation
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp generation IDs, user IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures keep their
//     class (timeout, auth required, upstream down) through every layer.
//   - Kind and Hint, which turn those classes into stable strings for logs and
//     API payloads.
//
// Integration clients live in subpackages (llm).
package services
