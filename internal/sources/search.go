package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dailybrief/internal/config"
	"dailybrief/internal/services"
)

const maxSearchErrorBody = 512

// SearchResult is one ranked snippet.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
}

// Searcher runs a news search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchClient calls a Perplexity-compatible search endpoint.
type SearchClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	recency    string
	client     HTTPDoer
}

// NewSearchClient builds a client from search config.
func NewSearchClient(cfg *config.Config, client HTTPDoer) *SearchClient {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.Search.Timeout) * time.Second}
	}
	return &SearchClient{
		apiKey:     strings.TrimSpace(cfg.Search.APIKey),
		baseURL:    strings.TrimSpace(cfg.Search.BaseURL),
		maxResults: cfg.Search.MaxResults,
		recency:    cfg.Search.Recency,
		client:     client,
	}
}

type searchRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results,omitempty"`
	RecencyFilter string `json:"search_recency_filter,omitempty"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search posts the query and returns results in rank order.
func (c *SearchClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "search", "query", "search.api_key not configured", nil)
	}
	payload, err := json.Marshal(searchRequest{Query: query, MaxResults: c.maxResults, RecencyFilter: c.recency})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "search", "query", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxSearchErrorBody))
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "search", "query",
			fmt.Sprintf("search API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}
	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "search", "decode", "invalid response", err)
	}
	return decoded.Results, nil
}
