package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"dailybrief/internal/services"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 1500
)

// promptFunc returns the first text block of a reply. Tests substitute it.
type promptFunc func(systemPrompt, userPrompt, apiKey string, settings types.RequestSettings) (string, error)

func sendPrompt(systemPrompt, userPrompt, apiKey string, settings types.RequestSettings) (string, error) {
	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, "", apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", nil
	}
	return response.Content[0].Text, nil
}

// AnthropicClient implements Completer over the Anthropic Messages API.
type AnthropicClient struct {
	apiKey    string
	model     string
	maxTokens int
	prompt    promptFunc
}

// NewAnthropicClient builds a client from the shared LLM config.
func NewAnthropicClient(cfg Config) *AnthropicClient {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicClient{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		model:     model,
		maxTokens: maxTokens,
		prompt:    sendPrompt,
	}
}

// Complete sends one system/user exchange and returns the first text block.
// The underlying call is not context-aware, so cancellation abandons it.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("anthropic complete: api key required")
	}
	if strings.TrimSpace(userPrompt) == "" {
		return "", errors.New("anthropic complete: user prompt required")
	}
	settings := types.RequestSettings{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: proseTemperature,
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := c.prompt(systemPrompt, userPrompt, c.apiKey, settings)
		if err != nil {
			done <- outcome{err: fmt.Errorf("anthropic complete: %w: %w", services.ErrUpstreamUnavailable, err)}
			return
		}
		if text = strings.TrimSpace(text); text == "" {
			done <- outcome{err: errors.New("anthropic complete: empty content")}
			return
		}
		done <- outcome{text: text}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case out := <-done:
		return out.text, out.err
	}
}

// HealthCheck issues a minimal prompt.
func (c *AnthropicClient) HealthCheck(ctx context.Context) error {
	text, err := c.Complete(ctx, "Reply with the single word OK.", "ping")
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToUpper(text), "OK") {
		return fmt.Errorf("anthropic health: unexpected response %q", text)
	}
	return nil
}
