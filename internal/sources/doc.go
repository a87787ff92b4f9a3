// Package sources fetches content from the three upstream kinds a user can
// subscribe to.
//
// PublicationFetcher reads newsletter posts through the publication's
// authenticated API and falls back to its public feed. FeedFetcher parses
// RSS/Atom with gofeed and keeps entries from the last recency window (24h by
// default), including undated ones. TopicFetcher searches for news and asks an
// LLM for a brief, falling back to the raw snippets.
//
// Every fetcher returns a result value rather than an error so one broken
// upstream never aborts a batch.
package sources
