package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/logging"
	"dailybrief/internal/services"
	"dailybrief/internal/services/llm"
	"dailybrief/internal/sources"
)

const eventSourceFetchFailed = "source_fetch_failed"

// Catalog is the read-only view of a user's sources.
type Catalog interface {
	PrioritySubscriptions(ctx context.Context, userID string) ([]catalog.PrioritySubscription, error)
	Feeds(ctx context.Context, userID string) ([]catalog.FeedSource, error)
	Topics(ctx context.Context, userID string) ([]catalog.Topic, error)
	SubstackToken(ctx context.Context, userID string) (string, error)
}

// PublicationFetcher fetches posts for one priority subscription.
type PublicationFetcher interface {
	Fetch(ctx context.Context, sub catalog.PrioritySubscription, token string) sources.PublicationResult
}

// FeedFetcher fetches one feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, src catalog.FeedSource) sources.FeedResult
}

// TopicFetcher runs the search and synthesis pipeline for one topic.
type TopicFetcher interface {
	Fetch(ctx context.Context, topic catalog.Topic) sources.TopicResult
}

// Aggregator collects content for a user from every configured source.
type Aggregator struct {
	catalog       Catalog
	publications  PublicationFetcher
	feeds         FeedFetcher
	topics        TopicFetcher
	maxConcurrent int
	logger        *slog.Logger
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithPublicationFetcher overrides the newsletter fetcher.
func WithPublicationFetcher(f PublicationFetcher) Option {
	return func(a *Aggregator) {
		if f != nil {
			a.publications = f
		}
	}
}

// WithFeedFetcher overrides the feed fetcher.
func WithFeedFetcher(f FeedFetcher) Option {
	return func(a *Aggregator) {
		if f != nil {
			a.feeds = f
		}
	}
}

// WithTopicFetcher overrides the topic fetcher.
func WithTopicFetcher(f TopicFetcher) Option {
	return func(a *Aggregator) {
		if f != nil {
			a.topics = f
		}
	}
}

// WithLogger sets the logger used for per-source warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logging.NewComponentLogger(logger, "aggregator")
		}
	}
}

// New builds an Aggregator with fetchers configured from cfg. Options replace
// individual fetchers, which tests use to avoid the network.
func New(cfg *config.Config, cat Catalog, opts ...Option) (*Aggregator, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "aggregator", "init", "config is required", nil)
	}
	if cat == nil {
		return nil, services.Wrap(services.ErrConfiguration, "aggregator", "init", "catalog is required", nil)
	}
	a := &Aggregator{
		catalog:       cat,
		maxConcurrent: cfg.Feeds.MaxConcurrent,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxConcurrent <= 0 {
		a.maxConcurrent = 1
	}
	if a.publications == nil {
		a.publications = sources.NewPublicationFetcher(cfg, nil)
	}
	if a.feeds == nil {
		a.feeds = sources.NewFeedFetcher(cfg, nil)
	}
	if a.topics == nil {
		completer, err := llm.NewCompleter(cfg.SynthesisLLM())
		if err != nil {
			return nil, fmt.Errorf("synthesis client: %w", err)
		}
		a.topics = sources.NewTopicFetcher(sources.NewSearchClient(cfg, nil), sources.NewLLMSynthesizer(completer))
	}
	return a, nil
}

// Aggregate fetches every enabled source for userID. It never returns an
// error: catalog and fetch failures are recorded in Batch.Problems and on the
// affected result.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) Batch {
	logger := logging.WithContext(ctx, a.logger).With(logging.String(logging.FieldUserID, userID))
	started := time.Now()
	batch := Batch{UserID: userID}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		problems []string
	)
	report := func(problem string) {
		mu.Lock()
		problems = append(problems, problem)
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		batch.Priority = a.fetchPublications(ctx, userID, logger, report)
	}()
	go func() {
		defer wg.Done()
		batch.Feeds = a.fetchFeeds(ctx, userID, logger, report)
	}()
	go func() {
		defer wg.Done()
		batch.Topics = a.fetchTopics(ctx, userID, logger, report)
	}()
	wg.Wait()

	sort.Strings(problems)
	batch.Problems = problems
	used := batch.SourcesUsed()
	logger.Info("content aggregated",
		logging.Int("priority_posts", used.Priority),
		logging.Int("feed_entries", used.Feeds),
		logging.Int("topics", used.Topics),
		logging.Int("items", used.Items),
		logging.Int("failed_sources", len(used.FailedSources)),
		logging.Duration("duration", time.Since(started)),
	)
	return batch
}

func (a *Aggregator) fetchPublications(ctx context.Context, userID string, logger *slog.Logger, report func(string)) []sources.PublicationResult {
	subs, err := a.catalog.PrioritySubscriptions(ctx, userID)
	if err != nil {
		a.catalogFailure(logger, "publications", err, report)
		return nil
	}
	subs = byPriority(subs)
	token, err := a.catalog.SubstackToken(ctx, userID)
	if err != nil {
		logging.WarnWithContext(logger, "publication token unavailable", eventSourceFetchFailed,
			logging.String(logging.FieldSourceKind, "publication"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "publications will be read from their public feeds"),
			logging.String(logging.FieldErrorHint, "check the user's settings in the catalog"),
		)
		token = ""
	}

	results := make([]sources.PublicationResult, len(subs))
	started := a.fanOut(ctx, len(subs), func(i int) {
		results[i] = a.publications.Fetch(ctx, subs[i], token)
	})
	for i := started; i < len(subs); i++ {
		results[i] = sources.PublicationResult{Subscription: subs[i], Err: ctx.Err()}
	}
	for _, res := range results {
		label := publicationLabel(res.Subscription)
		if res.Err != nil {
			a.sourceFailure(logger, "publication", label, res.Err, report)
			continue
		}
		if res.APIErr != nil {
			logger.Debug("publication api unavailable, used feed",
				logging.String(logging.FieldSource, label),
				logging.Error(res.APIErr),
			)
		}
	}
	return results
}

func (a *Aggregator) fetchFeeds(ctx context.Context, userID string, logger *slog.Logger, report func(string)) []sources.FeedResult {
	feeds, err := a.catalog.Feeds(ctx, userID)
	if err != nil {
		a.catalogFailure(logger, "feeds", err, report)
		return nil
	}
	results := make([]sources.FeedResult, len(feeds))
	started := a.fanOut(ctx, len(feeds), func(i int) {
		results[i] = a.feeds.Fetch(ctx, feeds[i])
	})
	for i := started; i < len(feeds); i++ {
		results[i] = sources.FeedResult{Source: feeds[i], Err: ctx.Err()}
	}
	for _, res := range results {
		if res.Err != nil {
			a.sourceFailure(logger, "feed", res.Source.DisplayName(), res.Err, report)
		}
	}
	return results
}

func (a *Aggregator) fetchTopics(ctx context.Context, userID string, logger *slog.Logger, report func(string)) []sources.TopicResult {
	topics, err := a.catalog.Topics(ctx, userID)
	if err != nil {
		a.catalogFailure(logger, "topics", err, report)
		return nil
	}
	results := make([]sources.TopicResult, len(topics))
	started := a.fanOut(ctx, len(topics), func(i int) {
		results[i] = a.topics.Fetch(ctx, topics[i])
	})
	for i := started; i < len(topics); i++ {
		results[i] = sources.TopicResult{Topic: topics[i], Err: ctx.Err()}
	}
	for _, res := range results {
		if res.Err != nil {
			a.sourceFailure(logger, "topic", res.Topic.Topic, res.Err, report)
			continue
		}
		if res.SynthErr != nil {
			logging.WarnWithContext(logger, "topic synthesis failed; using raw snippets", "topic_synthesis_failed",
				logging.String(logging.FieldSourceKind, "topic"),
				logging.String(logging.FieldSource, res.Topic.Topic),
				logging.Error(res.SynthErr),
				logging.String(logging.FieldImpact, "topic brief is a list of search snippets"),
				logging.String(logging.FieldErrorHint, "check the synthesis provider key and quota"),
			)
		}
	}
	return results
}

// fanOut runs fn for each index with at most maxConcurrent calls in flight
// and returns how many indexes were started. Indexes from the returned value
// on were skipped because ctx ended.
func (a *Aggregator) fanOut(ctx context.Context, n int, fn func(i int)) int {
	slots := make(chan struct{}, a.maxConcurrent)
	var wg sync.WaitGroup
	for i := range n {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return i
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			fn(i)
		}()
	}
	wg.Wait()
	return n
}

func (a *Aggregator) sourceFailure(logger *slog.Logger, kind, source string, err error, report func(string)) {
	logging.WarnWithContext(logger, "source fetch failed", eventSourceFetchFailed,
		logging.String(logging.FieldSourceKind, kind),
		logging.String(logging.FieldSource, source),
		logging.Error(err),
		logging.String(logging.FieldImpact, "source skipped for this generation"),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
	)
	report(fmt.Sprintf("%s %s: %v", kind, source, err))
}

func (a *Aggregator) catalogFailure(logger *slog.Logger, list string, err error, report func(string)) {
	logging.WarnWithContext(logger, "catalog read failed", eventSourceFetchFailed,
		logging.String(logging.FieldSourceKind, list),
		logging.Error(err),
		logging.String(logging.FieldImpact, "no "+list+" included in this generation"),
		logging.String(logging.FieldErrorHint, "check the database with dailybrief status"),
	)
	report(fmt.Sprintf("catalog %s: %v", list, err))
}

// byPriority orders subscriptions by rank with unranked ones last. The
// catalog already returns this order; sorting again keeps the contract when
// another Catalog implementation does not.
func byPriority(subs []catalog.PrioritySubscription) []catalog.PrioritySubscription {
	out := append([]catalog.PrioritySubscription(nil), subs...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Priority, out[j].Priority
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return *pi < *pj
		}
	})
	return out
}

func publicationLabel(sub catalog.PrioritySubscription) string {
	if sub.Name != "" {
		return sub.Name
	}
	return sub.Subdomain
}
