// Package catalog stores each user's publications, feeds, topics, and
// generation preferences. The aggregator only reads it; writes come from the
// YAML seed import used by 'dailybrief sources import'.
package catalog
