package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/services"
)

const defaultUserAgent = "dailybrief/1.0 (+https://github.com/dailybrief)"

// HTTPDoer describes the HTTP client used by the fetchers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Entry is one feed item kept by the recency policy.
type Entry struct {
	Title     string
	Link      string
	Summary   string
	Content   string
	Author    string
	Published *time.Time
}

// FeedResult is the outcome for one feed. Err is set when the feed could not
// be fetched or parsed; Entries is then empty.
type FeedResult struct {
	Source  catalog.FeedSource
	Entries []Entry
	Err     error
}

// FeedFetcher reads RSS/Atom feeds and keeps entries published or updated
// within the recency window. Entries with no date are kept.
type FeedFetcher struct {
	client    HTTPDoer
	recency   time.Duration
	userAgent string
	now       func() time.Time
}

// NewFeedFetcher builds a fetcher from feed config.
func NewFeedFetcher(cfg *config.Config, client HTTPDoer) *FeedFetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.Feeds.RequestTimeout) * time.Second}
	}
	ua := strings.TrimSpace(cfg.Feeds.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &FeedFetcher{
		client:    client,
		recency:   cfg.FeedRecency(),
		userAgent: ua,
		now:       time.Now,
	}
}

// SetClock overrides the time source used for the recency cutoff.
func (f *FeedFetcher) SetClock(now func() time.Time) {
	if now != nil {
		f.now = now
	}
}

// Fetch retrieves one feed. It never panics on malformed input and reports
// failures through FeedResult.Err.
func (f *FeedFetcher) Fetch(ctx context.Context, src catalog.FeedSource) FeedResult {
	result := FeedResult{Source: src}
	feed, err := fetchFeed(ctx, f.client, src.URL, f.userAgent)
	if err != nil {
		result.Err = err
		return result
	}

	cutoff := f.now().Add(-f.recency)
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		published := itemTime(item)
		if published != nil && published.Before(cutoff) {
			continue
		}
		result.Entries = append(result.Entries, Entry{
			Title:     strings.TrimSpace(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Summary:   htmlToText(item.Description),
			Content:   htmlToMarkdown(item.Content),
			Author:    itemAuthor(item),
			Published: published,
		})
	}
	return result
}

func itemTime(item *gofeed.Item) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	default:
		return nil
	}
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil {
		return strings.TrimSpace(item.Author.Name)
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return strings.TrimSpace(item.Authors[0].Name)
	}
	return ""
}

func fetchFeed(ctx context.Context, client HTTPDoer, url, userAgent string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "feed", "build request", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "feed", "fetch", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "feed", "fetch", fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
	}
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "feed", "parse", url, err)
	}
	return feed, nil
}
