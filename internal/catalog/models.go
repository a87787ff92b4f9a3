package catalog

// PrioritySubscription is a subscribed publication ranked 1-5. Lower numbers
// come first; unranked subscriptions sort last.
type PrioritySubscription struct {
	ID            int64  `db:"id"`
	UserID        string `db:"user_id"`
	PublicationID string `db:"publication_id"`
	Name          string `db:"name"`
	Subdomain     string `db:"subdomain"`
	Priority      *int   `db:"priority"`
	Enabled       bool   `db:"enabled"`
}

// FeedSource is an RSS or Atom feed.
type FeedSource struct {
	ID      int64  `db:"id"`
	UserID  string `db:"user_id"`
	URL     string `db:"url"`
	Name    string `db:"name"`
	Enabled bool   `db:"enabled"`
}

// DisplayName falls back to the URL when the feed has no name.
func (f FeedSource) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.URL
}

// Topic is a free-text news search topic.
type Topic struct {
	ID      int64  `db:"id"`
	UserID  string `db:"user_id"`
	Topic   string `db:"topic"`
	Enabled bool   `db:"enabled"`
}

// Settings holds per-user generation preferences and the publication API token.
type Settings struct {
	UserID        string `db:"user_id"`
	SubstackToken string `db:"substack_token"`
	DailyEnabled  bool   `db:"daily_enabled"`
	AudioFormat   string `db:"audio_format"`
	Instructions  string `db:"instructions"`
}

// Snapshot is every source a user has, enabled or not.
type Snapshot struct {
	Settings     Settings
	Publications []PrioritySubscription
	Feeds        []FeedSource
	Topics       []Topic
}
