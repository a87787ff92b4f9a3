// Package notifications delivers generation events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Per-event toggles
// (notifications.generation, notifications.errors) let operators silence
// success or failure messages independently.
//
// Workflow code depends only on the Service interface and the Event/Payload
// pair, so alternative transports can be added without touching callers.
package notifications
