// Package aggregator fans a user's catalog out to the source fetchers and
// turns what comes back into one ordered list of content items.
//
// Aggregate never fails. A broken feed, a publication whose API and feed are
// both down, or a search timeout becomes an error result for that one source
// plus a WARN line with event_type=source_fetch_failed; everything else in the
// batch is kept. The three source kinds are fetched concurrently and each
// kind writes only into its own index-addressed slots, so no result slice is
// shared between goroutines.
//
// Batch.Items orders content the way the synthesis step expects to read it:
// priority publications first, then feed entries grouped by feed, then topic
// briefs.
package aggregator
