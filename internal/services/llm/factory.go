package llm

import (
	"fmt"

	"dailybrief/internal/config"
)

// NewCompleter selects the synthesis provider. It returns nil when synthesis
// is disabled, in which case callers fall back to raw snippets.
func NewCompleter(cfg config.LLMConfig) (Completer, error) {
	clientCfg := Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
		MaxTokens:      cfg.MaxTokens,
	}
	switch cfg.Provider {
	case config.SynthesisProviderNone, "":
		return nil, nil
	case config.SynthesisProviderOpenRouter:
		return NewClient(clientCfg), nil
	case config.SynthesisProviderAnthropic:
		return NewAnthropicClient(clientCfg), nil
	default:
		return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
	}
}
