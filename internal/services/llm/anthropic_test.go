package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aktagon/llmkit/anthropic/types"

	"dailybrief/internal/config"
	"dailybrief/internal/services"
)

func TestAnthropicClientComplete(t *testing.T) {
	client := NewAnthropicClient(Config{APIKey: "key", MaxTokens: 0})
	var gotSettings types.RequestSettings
	client.prompt = func(system, user, apiKey string, settings types.RequestSettings) (string, error) {
		gotSettings = settings
		if apiKey != "key" || user != "snippets" {
			t.Errorf("unexpected call: %q %q", apiKey, user)
		}
		return "  A calm day in markets.  ", nil
	}

	text, err := client.Complete(context.Background(), "system", "snippets")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "A calm day in markets." {
		t.Fatalf("unexpected text %q", text)
	}
	if gotSettings.Model != defaultAnthropicModel || gotSettings.MaxTokens != defaultAnthropicMaxTokens {
		t.Fatalf("defaults not applied: %+v", gotSettings)
	}
}

func TestAnthropicClientErrors(t *testing.T) {
	client := NewAnthropicClient(Config{APIKey: "key"})
	client.prompt = func(string, string, string, types.RequestSettings) (string, error) {
		return "", errors.New("overloaded")
	}
	if _, err := client.Complete(context.Background(), "s", "u"); !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	client.prompt = func(string, string, string, types.RequestSettings) (string, error) { return " ", nil }
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected empty content error")
	}

	release := make(chan struct{})
	defer close(release)
	client.prompt = func(string, string, string, types.RequestSettings) (string, error) {
		<-release
		return "late", nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Complete(ctx, "s", "u"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if _, err := NewAnthropicClient(Config{}).Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(config.LLMConfig{Provider: config.SynthesisProviderNone})
	if err != nil || c != nil {
		t.Fatalf("expected nil completer for none, got %T %v", c, err)
	}
	c, err = NewCompleter(config.LLMConfig{Provider: config.SynthesisProviderOpenRouter, APIKey: "k"})
	if _, ok := c.(*Client); err != nil || !ok {
		t.Fatalf("expected openrouter client, got %T %v", c, err)
	}
	c, err = NewCompleter(config.LLMConfig{Provider: config.SynthesisProviderAnthropic, APIKey: "k"})
	if _, ok := c.(*AnthropicClient); err != nil || !ok {
		t.Fatalf("expected anthropic client, got %T %v", c, err)
	}
	if _, err := NewCompleter(config.LLMConfig{Provider: "mystery"}); err == nil {
		t.Fatal("expected unknown provider error")
	}
}
