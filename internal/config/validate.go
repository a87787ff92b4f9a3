package config

import (
	"errors"
	"fmt"
	"strings"
)

var validAudioFormats = map[string]struct{}{
	"deep-dive": {},
	"brief":     {},
	"critique":  {},
	"debate":    {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateNotebook(); err != nil {
		return err
	}
	if err := c.validateBrowser(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"notebook.source_ready_timeout": c.Notebook.SourceReadyTimeout,
		"notebook.audio_timeout":        c.Notebook.AudioTimeout,
		"notebook.request_timeout":      c.Notebook.RequestTimeout,
		"browser.login_timeout":         c.Browser.LoginTimeout,
		"search.timeout":                c.Search.Timeout,
		"substack.request_timeout":      c.Substack.RequestTimeout,
		"feeds.request_timeout":         c.Feeds.RequestTimeout,
		"feeds.recency_hours":           c.Feeds.RecencyHours,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"workflow.watchdog_interval":    c.Workflow.WatchdogInterval,
		"workflow.max_concurrent_runs":  c.Workflow.MaxConcurrentRuns,
		"synthesis.timeout_seconds":     c.Synthesis.TimeoutSeconds,
		"notebook.poll_interval":        c.Notebook.PollInterval,
		"substack.post_limit":           c.Substack.PostLimit,
		"search.max_results":            c.Search.MaxResults,
		"workflow.run_deadline":         c.Workflow.RunDeadline,
		"feeds.max_concurrent":          c.Feeds.MaxConcurrent,
		"synthesis.max_tokens":          c.Synthesis.MaxTokens,
	})
}

func (c *Config) validateNotebook() error {
	if _, ok := validAudioFormats[c.Notebook.AudioFormat]; !ok {
		return fmt.Errorf("notebook.audio_format %q is not one of deep-dive, brief, critique, debate", c.Notebook.AudioFormat)
	}
	if !strings.HasPrefix(c.Notebook.APIBaseURL, "http://") && !strings.HasPrefix(c.Notebook.APIBaseURL, "https://") {
		return errors.New("notebook.api_base_url must be an http(s) URL")
	}
	return nil
}

func (c *Config) validateBrowser() error {
	switch c.Browser.Mode {
	case BrowserModeInteractive, BrowserModeHeadless:
		return nil
	default:
		return fmt.Errorf("browser.mode %q must be %q or %q", c.Browser.Mode, BrowserModeInteractive, BrowserModeHeadless)
	}
}

func (c *Config) validateSynthesis() error {
	switch c.Synthesis.Provider {
	case SynthesisProviderNone:
		return nil
	case SynthesisProviderOpenRouter:
		if c.Synthesis.APIKey == "" {
			return errors.New("synthesis.api_key must be set when synthesis.provider is openrouter (or set OPENROUTER_API_KEY)")
		}
		return nil
	case SynthesisProviderAnthropic:
		if c.Synthesis.APIKey == "" {
			return errors.New("synthesis.api_key must be set when synthesis.provider is anthropic (or set ANTHROPIC_API_KEY)")
		}
		return nil
	default:
		return fmt.Errorf("synthesis.provider %q must be one of none, openrouter, anthropic", c.Synthesis.Provider)
	}
}

func (c *Config) validateWorkflow() error {
	budget := c.Notebook.SourceReadyTimeout + c.Notebook.AudioTimeout
	if c.Workflow.RunDeadline <= budget {
		return fmt.Errorf("workflow.run_deadline (%ds) must be greater than notebook.source_ready_timeout + notebook.audio_timeout (%ds)", c.Workflow.RunDeadline, budget)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
