package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dailybrief/internal/catalog"
	"dailybrief/internal/services/llm"
)

// TopicResult is the outcome for one topic. Summary always holds text: a
// brief, raw snippets, the no-news message, or the error message when Err is
// set.
type TopicResult struct {
	Topic       catalog.Topic
	Summary     string
	Results     int
	Synthesized bool
	Err         error
	SynthErr    error
}

// Synthesizer turns search results into a prose brief.
type Synthesizer interface {
	Synthesize(ctx context.Context, topic string, results []SearchResult) (string, error)
}

// TopicFetcher runs the two-stage topic pipeline: search, then synthesis with
// a fallback to the raw snippets.
type TopicFetcher struct {
	search Searcher
	synth  Synthesizer
}

// NewTopicFetcher wires a searcher and an optional synthesizer.
func NewTopicFetcher(search Searcher, synth Synthesizer) *TopicFetcher {
	return &TopicFetcher{search: search, synth: synth}
}

// Query is the search text issued for a topic.
func Query(topic string) string {
	return "latest news about " + topic
}

// NoNewsMessage is returned when the search finds nothing.
func NoNewsMessage(topic string) string {
	return fmt.Sprintf("No recent news found for %s in the last 24 hours.", topic)
}

// Fetch runs the pipeline for one topic.
func (f *TopicFetcher) Fetch(ctx context.Context, topic catalog.Topic) TopicResult {
	result := TopicResult{Topic: topic}
	results, err := f.search.Search(ctx, Query(topic.Topic))
	if err != nil {
		result.Err = err
		result.Summary = "Error fetching news: " + err.Error()
		return result
	}
	result.Results = len(results)
	if len(results) == 0 {
		result.Summary = NoNewsMessage(topic.Topic)
		return result
	}

	if f.synth != nil {
		brief, err := f.synth.Synthesize(ctx, topic.Topic, results)
		if err == nil && strings.TrimSpace(brief) != "" {
			result.Summary = strings.TrimSpace(brief)
			result.Synthesized = true
			return result
		}
		result.SynthErr = err
	}
	result.Summary = FormatSnippets(topic.Topic, results)
	return result
}

// FormatSnippets renders results as a numbered list with sources.
func FormatSnippets(topic string, results []SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Latest news about %s:\n", topic)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s", i+1, strings.TrimSpace(r.Title))
		if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
			fmt.Fprintf(&b, "\n   %s", snippet)
		}
		if u := strings.TrimSpace(r.URL); u != "" {
			fmt.Fprintf(&b, "\n   Source: %s", u)
		}
	}
	return b.String()
}

const synthesisSystemPrompt = `You are a news editor preparing material for a spoken daily briefing.
Write a concise prose brief of the most important developments in the search results.
Stay factual, do not speculate, and cite sources inline as [n] using the result numbers.
End with a "Sources:" list of the numbered URLs you cited.`

const structuredSystemPrompt = `You are a news editor preparing material for a spoken daily briefing.
Summarize the most important developments in the search results as concise prose.
Stay factual, do not speculate, and cite sources inline as [n] using the result numbers.
Respond with a single JSON object: {"brief": "<prose>", "sources": [<result numbers cited>]}.`

// topicBrief is the structured reply requested from JSON-capable models.
type topicBrief struct {
	Brief   string `json:"brief"`
	Sources []int  `json:"sources"`
}

// LLMSynthesizer adapts an llm.Completer. Providers that implement
// llm.JSONCompleter are asked for a topicBrief; others return prose.
type LLMSynthesizer struct {
	completer llm.Completer
}

// NewLLMSynthesizer returns nil when completer is nil so TopicFetcher skips
// synthesis.
func NewLLMSynthesizer(completer llm.Completer) Synthesizer {
	if completer == nil {
		return nil
	}
	return &LLMSynthesizer{completer: completer}
}

// Synthesize asks the model for a brief grounded in the snippets.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, topic string, results []SearchResult) (string, error) {
	prompt := fmt.Sprintf("Topic: %s\n\nSearch results:\n%s", topic, FormatSnippets(topic, results))
	structured, ok := s.completer.(llm.JSONCompleter)
	if !ok {
		return s.completer.Complete(ctx, synthesisSystemPrompt, prompt)
	}
	raw, err := structured.CompleteJSON(ctx, structuredSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	var brief topicBrief
	if err := llm.DecodeLLMJSON(raw, &brief); err != nil {
		return "", fmt.Errorf("decode topic brief: %w", err)
	}
	if strings.TrimSpace(brief.Brief) == "" {
		return "", errors.New("decode topic brief: empty brief")
	}
	return renderBrief(brief, results), nil
}

// renderBrief appends the cited URLs to the brief. Citation numbers outside
// the result list are dropped.
func renderBrief(brief topicBrief, results []SearchResult) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(brief.Brief))
	seen := make(map[int]bool, len(brief.Sources))
	var cited []string
	for _, n := range brief.Sources {
		if n < 1 || n > len(results) || seen[n] {
			continue
		}
		seen[n] = true
		if u := strings.TrimSpace(results[n-1].URL); u != "" {
			cited = append(cited, fmt.Sprintf("[%d] %s", n, u))
		}
	}
	if len(cited) > 0 {
		b.WriteString("\n\nSources:\n")
		b.WriteString(strings.Join(cited, "\n"))
	}
	return b.String()
}
