package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNotebook()
	if err := c.normalizeBrowser(); err != nil {
		return err
	}
	c.normalizeSearch()
	c.normalizeSynthesis()
	c.normalizeSources()
	c.normalizeCredentials()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CredentialsDir) == "" {
		c.Paths.CredentialsDir = defaultCredentialsDir
	}
	if c.Paths.CredentialsDir, err = expandPath(c.Paths.CredentialsDir); err != nil {
		return fmt.Errorf("paths.credentials_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("DAILYBRIEF_API_TOKEN")
	}
	c.Paths.AdminToken = strings.TrimSpace(c.Paths.AdminToken)
	if c.Paths.AdminToken == "" {
		c.Paths.AdminToken = lookupEnv("DAILYBRIEF_ADMIN_TOKEN")
	}
	return nil
}

func (c *Config) normalizeNotebook() {
	c.Notebook.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Notebook.APIBaseURL), "/")
	if c.Notebook.APIBaseURL == "" {
		c.Notebook.APIBaseURL = defaultNotebookAPIBaseURL
	}
	c.Notebook.LoginURL = strings.TrimSpace(c.Notebook.LoginURL)
	if c.Notebook.LoginURL == "" {
		c.Notebook.LoginURL = defaultNotebookLoginURL
	}
	c.Notebook.CookieDomain = strings.TrimSpace(c.Notebook.CookieDomain)
	if c.Notebook.CookieDomain == "" {
		c.Notebook.CookieDomain = defaultNotebookCookieDomain
	}
	c.Notebook.AudioFormat = strings.ToLower(strings.TrimSpace(c.Notebook.AudioFormat))
	if c.Notebook.AudioFormat == "" {
		c.Notebook.AudioFormat = defaultAudioFormat
	}
	c.Notebook.Instructions = strings.TrimSpace(c.Notebook.Instructions)
	if c.Notebook.PollInterval <= 0 {
		c.Notebook.PollInterval = defaultPollInterval
	}
}

func (c *Config) normalizeBrowser() error {
	c.Browser.Mode = strings.ToLower(strings.TrimSpace(c.Browser.Mode))
	if c.Browser.Mode == "" {
		c.Browser.Mode = BrowserModeInteractive
	}
	if value := lookupEnv("DAILYBRIEF_BROWSER_MODE"); value != "" {
		c.Browser.Mode = strings.ToLower(value)
	}
	c.Browser.Binary = strings.TrimSpace(c.Browser.Binary)
	c.Browser.ReadySelector = strings.TrimSpace(c.Browser.ReadySelector)
	if c.Browser.ReadySelector == "" {
		c.Browser.ReadySelector = defaultReadySelector
	}
	if strings.TrimSpace(c.Browser.ProfileDir) == "" {
		c.Browser.ProfileDir = defaultBrowserProfileDir
	}
	var err error
	if c.Browser.ProfileDir, err = expandPath(c.Browser.ProfileDir); err != nil {
		return fmt.Errorf("browser.profile_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSearch() {
	c.Search.APIKey = strings.TrimSpace(c.Search.APIKey)
	if c.Search.APIKey == "" {
		c.Search.APIKey = lookupEnv("PERPLEXITY_API_KEY")
	}
	c.Search.BaseURL = strings.TrimSpace(c.Search.BaseURL)
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = defaultSearchBaseURL
	}
	c.Search.Recency = strings.ToLower(strings.TrimSpace(c.Search.Recency))
	if c.Search.Recency == "" {
		c.Search.Recency = defaultSearchRecency
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = defaultSearchMaxResults
	}
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Provider = strings.ToLower(strings.TrimSpace(c.Synthesis.Provider))
	if c.Synthesis.Provider == "" {
		c.Synthesis.Provider = SynthesisProviderNone
	}
	c.Synthesis.APIKey = strings.TrimSpace(c.Synthesis.APIKey)
	switch c.Synthesis.Provider {
	case SynthesisProviderOpenRouter:
		if c.Synthesis.APIKey == "" {
			c.Synthesis.APIKey = lookupEnv("OPENROUTER_API_KEY")
		}
		if strings.TrimSpace(c.Synthesis.BaseURL) == "" {
			c.Synthesis.BaseURL = defaultOpenRouterBaseURL
		}
		if strings.TrimSpace(c.Synthesis.Model) == "" {
			c.Synthesis.Model = defaultOpenRouterModel
		}
	case SynthesisProviderAnthropic:
		if c.Synthesis.APIKey == "" {
			c.Synthesis.APIKey = lookupEnv("ANTHROPIC_API_KEY")
		}
		if strings.TrimSpace(c.Synthesis.Model) == "" {
			c.Synthesis.Model = defaultAnthropicModel
		}
	}
	c.Synthesis.BaseURL = strings.TrimSpace(c.Synthesis.BaseURL)
	c.Synthesis.Model = strings.TrimSpace(c.Synthesis.Model)
	c.Synthesis.Referer = strings.TrimSpace(c.Synthesis.Referer)
	if c.Synthesis.Referer == "" {
		c.Synthesis.Referer = defaultSynthesisReferer
	}
	c.Synthesis.Title = strings.TrimSpace(c.Synthesis.Title)
	if c.Synthesis.Title == "" {
		c.Synthesis.Title = defaultSynthesisTitle
	}
	if c.Synthesis.TimeoutSeconds <= 0 {
		c.Synthesis.TimeoutSeconds = defaultSynthesisTimeoutSeconds
	}
	if c.Synthesis.MaxTokens <= 0 {
		c.Synthesis.MaxTokens = defaultSynthesisMaxTokens
	}
}

func (c *Config) normalizeSources() {
	c.Substack.PublicationURLTemplate = strings.TrimSpace(c.Substack.PublicationURLTemplate)
	if c.Substack.PublicationURLTemplate == "" {
		c.Substack.PublicationURLTemplate = defaultPublicationURLTemplate
	}
	if c.Substack.PostLimit <= 0 {
		c.Substack.PostLimit = defaultPostLimit
	}
	c.Feeds.UserAgent = strings.TrimSpace(c.Feeds.UserAgent)
	if c.Feeds.UserAgent == "" {
		c.Feeds.UserAgent = defaultFeedUserAgent
	}
	if c.Feeds.MaxConcurrent <= 0 {
		c.Feeds.MaxConcurrent = defaultFeedMaxConcurrent
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeCredentials() {
	c.Credentials.EncryptionKey = strings.TrimSpace(c.Credentials.EncryptionKey)
	if c.Credentials.EncryptionKey == "" {
		c.Credentials.EncryptionKey = lookupEnv("DAILYBRIEF_CREDENTIALS_KEY")
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
