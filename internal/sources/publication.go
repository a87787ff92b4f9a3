package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/services"
)

// Via values record which path produced a publication's posts.
const (
	ViaAPI  = "api"
	ViaFeed = "feed"
)

const defaultPostLimit = 5

// Post is one newsletter issue.
type Post struct {
	Title       string
	Subtitle    string
	Body        string
	URL         string
	PublishedAt *time.Time
}

// PublicationResult is the outcome for one priority subscription. APIErr holds
// the reason the authenticated API was skipped or failed; Err is set only when
// the feed fallback failed as well.
type PublicationResult struct {
	Subscription catalog.PrioritySubscription
	Posts        []Post
	Via          string
	APIErr       error
	Err          error
}

// PublicationFetcher reads recent posts through the publication's
// authenticated API and falls back to its public feed.
type PublicationFetcher struct {
	client      HTTPDoer
	urlTemplate string
	limit       int
	userAgent   string
}

// NewPublicationFetcher builds a fetcher from substack config.
func NewPublicationFetcher(cfg *config.Config, client HTTPDoer) *PublicationFetcher {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.Substack.RequestTimeout) * time.Second}
	}
	limit := cfg.Substack.PostLimit
	if limit <= 0 {
		limit = defaultPostLimit
	}
	ua := strings.TrimSpace(cfg.Feeds.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &PublicationFetcher{
		client:      client,
		urlTemplate: cfg.Substack.PublicationURLTemplate,
		limit:       limit,
		userAgent:   ua,
	}
}

// BaseURL returns the publication root for a subdomain.
func (f *PublicationFetcher) BaseURL(subdomain string) string {
	return strings.TrimRight(fmt.Sprintf(f.urlTemplate, subdomain), "/")
}

// Fetch tries the API first, then the public feed.
func (f *PublicationFetcher) Fetch(ctx context.Context, sub catalog.PrioritySubscription, token string) PublicationResult {
	result := PublicationResult{Subscription: sub}
	base := f.BaseURL(sub.Subdomain)

	posts, err := f.fetchAPI(ctx, base, token)
	if err == nil {
		result.Posts = posts
		result.Via = ViaAPI
		return result
	}
	if ctx.Err() != nil {
		result.Err = ctx.Err()
		return result
	}
	result.APIErr = err

	posts, err = f.fetchFeed(ctx, base)
	if err != nil {
		result.Err = fmt.Errorf("api: %v; feed fallback: %w", result.APIErr, err)
		return result
	}
	result.Posts = posts
	result.Via = ViaFeed
	return result
}

type apiPost struct {
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	BodyHTML     string `json:"body_html"`
	CanonicalURL string `json:"canonical_url"`
	PostDate     string `json:"post_date"`
}

func (f *PublicationFetcher) fetchAPI(ctx context.Context, base, token string) ([]Post, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("no publication token for user")
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(f.limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/posts?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build posts request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "publication", "fetch posts", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "publication", "fetch posts", fmt.Sprintf("%s returned %d", base, resp.StatusCode), nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "publication", "read posts", base, err)
	}
	raw, err := decodePosts(body)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "publication", "decode posts", base, err)
	}

	posts := make([]Post, 0, len(raw))
	for _, p := range raw {
		posts = append(posts, Post{
			Title:       strings.TrimSpace(p.Title),
			Subtitle:    strings.TrimSpace(p.Subtitle),
			Body:        htmlToMarkdown(p.BodyHTML),
			URL:         strings.TrimSpace(p.CanonicalURL),
			PublishedAt: parsePostDate(p.PostDate),
		})
		if len(posts) == f.limit {
			break
		}
	}
	return posts, nil
}

// decodePosts accepts both {"posts":[...]} and a bare array.
func decodePosts(body []byte) ([]apiPost, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var posts []apiPost
		err := json.Unmarshal(trimmed, &posts)
		return posts, err
	}
	var wrapped struct {
		Posts []apiPost `json:"posts"`
	}
	err := json.Unmarshal(trimmed, &wrapped)
	return wrapped.Posts, err
}

func parsePostDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func (f *PublicationFetcher) fetchFeed(ctx context.Context, base string) ([]Post, error) {
	feed, err := fetchFeed(ctx, f.client, base+"/feed", f.userAgent)
	if err != nil {
		return nil, err
	}
	posts := make([]Post, 0, min(len(feed.Items), f.limit))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		posts = append(posts, Post{
			Title:       strings.TrimSpace(item.Title),
			Body:        htmlToMarkdown(feedBody(item)),
			URL:         strings.TrimSpace(item.Link),
			PublishedAt: itemTime(item),
		})
		if len(posts) == f.limit {
			break
		}
	}
	return posts, nil
}

func feedBody(item *gofeed.Item) string {
	if strings.TrimSpace(item.Content) != "" {
		return item.Content
	}
	return item.Description
}
