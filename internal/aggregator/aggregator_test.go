package aggregator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailybrief/internal/catalog"
	"dailybrief/internal/content"
	"dailybrief/internal/sources"
	"dailybrief/internal/testsupport"
)

type stubCatalog struct {
	subs     []catalog.PrioritySubscription
	feeds    []catalog.FeedSource
	topics   []catalog.Topic
	token    string
	feedsErr error
}

func (c *stubCatalog) PrioritySubscriptions(context.Context, string) ([]catalog.PrioritySubscription, error) {
	return c.subs, nil
}

func (c *stubCatalog) Feeds(context.Context, string) ([]catalog.FeedSource, error) {
	return c.feeds, c.feedsErr
}

func (c *stubCatalog) Topics(context.Context, string) ([]catalog.Topic, error) {
	return c.topics, nil
}

func (c *stubCatalog) SubstackToken(context.Context, string) (string, error) {
	return c.token, nil
}

type publicationFunc func(ctx context.Context, sub catalog.PrioritySubscription, token string) sources.PublicationResult

func (f publicationFunc) Fetch(ctx context.Context, sub catalog.PrioritySubscription, token string) sources.PublicationResult {
	return f(ctx, sub, token)
}

type feedFunc func(ctx context.Context, src catalog.FeedSource) sources.FeedResult

func (f feedFunc) Fetch(ctx context.Context, src catalog.FeedSource) sources.FeedResult {
	return f(ctx, src)
}

type topicFunc func(ctx context.Context, topic catalog.Topic) sources.TopicResult

func (f topicFunc) Fetch(ctx context.Context, topic catalog.Topic) sources.TopicResult {
	return f(ctx, topic)
}

func rank(n int) *int { return &n }

func newAggregator(t *testing.T, cat Catalog, opts ...Option) *Aggregator {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	defaults := []Option{
		WithPublicationFetcher(publicationFunc(func(_ context.Context, sub catalog.PrioritySubscription, _ string) sources.PublicationResult {
			return sources.PublicationResult{Subscription: sub}
		})),
		WithFeedFetcher(feedFunc(func(_ context.Context, src catalog.FeedSource) sources.FeedResult {
			return sources.FeedResult{Source: src}
		})),
		WithTopicFetcher(topicFunc(func(_ context.Context, topic catalog.Topic) sources.TopicResult {
			return sources.TopicResult{Topic: topic, Summary: sources.NoNewsMessage(topic.Topic)}
		})),
	}
	agg, err := New(cfg, cat, append(defaults, opts...)...)
	require.NoError(t, err)
	return agg
}

func TestAggregateOrdersPriorityFeedsTopics(t *testing.T) {
	cat := &stubCatalog{
		subs: []catalog.PrioritySubscription{
			{Name: "Second", Subdomain: "second", Priority: rank(2)},
			{Name: "Unranked", Subdomain: "unranked"},
			{Name: "First", Subdomain: "first", Priority: rank(1)},
		},
		feeds:  []catalog.FeedSource{{URL: "https://feed.example/rss", Name: "Feed"}},
		topics: []catalog.Topic{{Topic: "climate"}},
		token:  "tok",
	}
	var gotToken atomic.Value
	agg := newAggregator(t, cat,
		WithPublicationFetcher(publicationFunc(func(_ context.Context, sub catalog.PrioritySubscription, token string) sources.PublicationResult {
			gotToken.Store(token)
			if sub.Subdomain == "unranked" {
				return sources.PublicationResult{Subscription: sub}
			}
			// Slow down the first publication so completion order differs from catalog order.
			if sub.Subdomain == "first" {
				time.Sleep(20 * time.Millisecond)
			}
			return sources.PublicationResult{
				Subscription: sub,
				Via:          sources.ViaAPI,
				Posts:        []sources.Post{{Title: sub.Name + " post", Subtitle: "sub", Body: "body"}},
			}
		})),
		WithFeedFetcher(feedFunc(func(_ context.Context, src catalog.FeedSource) sources.FeedResult {
			return sources.FeedResult{Source: src, Entries: []sources.Entry{{Title: "Entry", Summary: "summary", Content: "content"}}}
		})),
		WithTopicFetcher(topicFunc(func(_ context.Context, topic catalog.Topic) sources.TopicResult {
			return sources.TopicResult{Topic: topic, Summary: "brief", Results: 3, Synthesized: true}
		})),
	)

	batch := agg.Aggregate(context.Background(), "alice")
	require.Equal(t, "tok", gotToken.Load())
	require.Empty(t, batch.Problems)

	items := batch.Items()
	require.Equal(t, []string{
		"Newsletter: First post",
		"Newsletter: Second post",
		"Entry",
		"News: climate",
	}, content.Titles(items))
	require.Equal(t, "# First post\n\nsub\n\nbody", items[0].Content)
	require.Equal(t, "# Entry\n\nsummary\n\ncontent", items[2].Content)
	require.Equal(t, "# Latest News: climate\n\nbrief", items[3].Content)
	for _, item := range items {
		require.Equal(t, content.TypeText, item.Type)
	}

	used := batch.SourcesUsed()
	require.Equal(t, 2, used.Priority)
	require.Equal(t, 1, used.Feeds)
	require.Equal(t, 1, used.Topics)
	require.Equal(t, 4, used.Items)
	require.Empty(t, used.FailedSources)
}

func TestAggregateIsolatesFailingFeed(t *testing.T) {
	cat := &stubCatalog{feeds: []catalog.FeedSource{
		{URL: "https://a.example/rss", Name: "A"},
		{URL: "https://broken.example/rss", Name: "Broken"},
		{URL: "https://c.example/rss"},
	}}
	agg := newAggregator(t, cat, WithFeedFetcher(feedFunc(func(_ context.Context, src catalog.FeedSource) sources.FeedResult {
		if src.Name == "Broken" {
			return sources.FeedResult{Source: src, Err: errors.New("connection refused")}
		}
		return sources.FeedResult{Source: src, Entries: []sources.Entry{{Title: "from " + src.DisplayName()}}}
	})))

	batch := agg.Aggregate(context.Background(), "alice")
	require.Len(t, batch.Feeds, 3)
	require.Len(t, batch.Feeds[0].Entries, 1)
	require.Error(t, batch.Feeds[1].Err)
	require.Empty(t, batch.Feeds[1].Entries)
	require.Len(t, batch.Feeds[2].Entries, 1)

	require.Equal(t, []string{"from A", "from https://c.example/rss"}, content.Titles(batch.Items()))
	require.Len(t, batch.Problems, 1)
	require.Contains(t, batch.Problems[0], "feed Broken")
	require.Equal(t, []string{"feed:Broken"}, batch.SourcesUsed().FailedSources)
}

func TestAggregateSkipsFailedTopicsButKeepsNoNews(t *testing.T) {
	cat := &stubCatalog{topics: []catalog.Topic{{Topic: "quiet"}, {Topic: "broken"}}}
	agg := newAggregator(t, cat, WithTopicFetcher(topicFunc(func(_ context.Context, topic catalog.Topic) sources.TopicResult {
		if topic.Topic == "broken" {
			err := errors.New("timeout")
			return sources.TopicResult{Topic: topic, Err: err, Summary: "Error fetching news: " + err.Error()}
		}
		return sources.TopicResult{Topic: topic, Summary: sources.NoNewsMessage(topic.Topic)}
	})))

	batch := agg.Aggregate(context.Background(), "alice")
	items := batch.Items()
	require.Len(t, items, 1)
	require.Equal(t, "News: quiet", items[0].Title)
	require.True(t, strings.HasSuffix(items[0].Content, "No recent news found for quiet in the last 24 hours."))
	require.Equal(t, []string{"topic:broken"}, batch.SourcesUsed().FailedSources)
}

func TestAggregateCatalogFailureIsAProblem(t *testing.T) {
	cat := &stubCatalog{feedsErr: errors.New("database is locked")}
	agg := newAggregator(t, cat)

	batch := agg.Aggregate(context.Background(), "alice")
	require.True(t, batch.Empty())
	require.Equal(t, []string{"catalog feeds: database is locked"}, batch.Problems)
}

func TestAggregateBoundsFeedConcurrency(t *testing.T) {
	feeds := make([]catalog.FeedSource, 10)
	for i := range feeds {
		feeds[i] = catalog.FeedSource{URL: "https://feed.example/" + string(rune('a'+i))}
	}
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	cfg := testsupport.NewConfig(t)
	cfg.Feeds.MaxConcurrent = 2
	agg, err := New(cfg, &stubCatalog{feeds: feeds},
		WithPublicationFetcher(publicationFunc(func(_ context.Context, sub catalog.PrioritySubscription, _ string) sources.PublicationResult {
			return sources.PublicationResult{Subscription: sub}
		})),
		WithTopicFetcher(topicFunc(func(_ context.Context, topic catalog.Topic) sources.TopicResult {
			return sources.TopicResult{Topic: topic}
		})),
		WithFeedFetcher(feedFunc(func(_ context.Context, src catalog.FeedSource) sources.FeedResult {
			mu.Lock()
			inFlight++
			peak = max(peak, inFlight)
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return sources.FeedResult{Source: src, Entries: []sources.Entry{{Title: src.URL}}}
		})),
	)
	require.NoError(t, err)

	batch := agg.Aggregate(context.Background(), "alice")
	require.LessOrEqual(t, peak, 2)
	require.Len(t, batch.Items(), 10)
	for i, item := range batch.Items() {
		require.Equal(t, feeds[i].URL, item.Title)
	}
}

func TestAggregateCanceledContextMarksSkippedSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cat := &stubCatalog{feeds: []catalog.FeedSource{{URL: "https://a"}, {URL: "https://b"}, {URL: "https://c"}}}
	agg := newAggregator(t, cat)

	batch := agg.Aggregate(ctx, "alice")
	require.Len(t, batch.Feeds, 3)
	for _, res := range batch.Feeds {
		if res.Err != nil {
			require.ErrorIs(t, res.Err, context.Canceled)
		}
		require.NotEmpty(t, res.Source.URL)
	}
}

func TestNewRequiresCatalog(t *testing.T) {
	_, err := New(testsupport.NewConfig(t), nil)
	require.Error(t, err)
}
