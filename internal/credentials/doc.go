// Package credentials persists captured provider sessions, one record per
// user, as owner-only files.
//
// Each user gets <id>.json (the opaque blob, optionally sealed with
// AES-256-GCM) and <id>_meta.json (when and how it was captured). Writes go
// through a temp file and rename so a crash never leaves a torn blob.
package credentials
