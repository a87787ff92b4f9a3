package config

// Browser modes.
const (
	BrowserModeInteractive = "interactive"
	BrowserModeHeadless    = "headless"
)

// Synthesis providers.
const (
	SynthesisProviderNone       = "none"
	SynthesisProviderOpenRouter = "openrouter"
	SynthesisProviderAnthropic  = "anthropic"
)

const (
	defaultConfigPath              = "~/.config/dailybrief/config.toml"
	defaultDataDir                 = "~/.local/share/dailybrief"
	defaultLogDir                  = "~/.local/share/dailybrief/logs"
	defaultCredentialsDir          = "~/.local/share/dailybrief/credentials"
	defaultBrowserProfileDir       = "~/.local/share/dailybrief/browser"
	defaultAPIBind                 = "127.0.0.1:7480"
	defaultNotebookAPIBaseURL      = "https://notebooklm.google.com"
	defaultNotebookLoginURL        = "https://notebooklm.google.com/"
	defaultNotebookCookieDomain    = ".google.com"
	defaultSourceReadyTimeout      = 120
	defaultAudioTimeout            = 600
	defaultPollInterval            = 5
	defaultNotebookRequestTimeout  = 30
	defaultAudioFormat             = "deep-dive"
	defaultLoginTimeout            = 300
	defaultReadySelector           = `[data-testid="notebook-card"], [aria-label="Create new notebook"]`
	defaultSearchBaseURL           = "https://api.perplexity.ai/search"
	defaultSearchMaxResults        = 10
	defaultSearchRecency           = "day"
	defaultSearchTimeout           = 30
	defaultOpenRouterBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel         = "google/gemini-3-flash-preview"
	defaultAnthropicModel          = "claude-sonnet-4-5"
	defaultSynthesisReferer        = "https://github.com/dailybrief/dailybrief"
	defaultSynthesisTitle          = "DailyBrief Topic Synthesis"
	defaultSynthesisTimeoutSeconds = 60
	defaultSynthesisMaxTokens      = 1024
	defaultPublicationURLTemplate  = "https://%s.substack.com"
	defaultPostLimit               = 5
	defaultSubstackRequestTimeout  = 15
	defaultFeedRecencyHours        = 24
	defaultFeedRequestTimeout      = 15
	defaultFeedUserAgent           = "DailyBrief/dev (+https://github.com/dailybrief/dailybrief)"
	defaultFeedMaxConcurrent       = 4
	defaultRunDeadline             = 1800
	defaultMaxConcurrentRuns       = 4
	defaultWatchdogInterval        = 60
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
			CredentialsDir: defaultCredentialsDir,
			APIBind:        defaultAPIBind,
		},
		Notebook: Notebook{
			APIBaseURL:         defaultNotebookAPIBaseURL,
			LoginURL:           defaultNotebookLoginURL,
			CookieDomain:       defaultNotebookCookieDomain,
			SourceReadyTimeout: defaultSourceReadyTimeout,
			AudioTimeout:       defaultAudioTimeout,
			PollInterval:       defaultPollInterval,
			RequestTimeout:     defaultNotebookRequestTimeout,
			AudioFormat:        defaultAudioFormat,
		},
		Browser: Browser{
			Mode:          BrowserModeInteractive,
			LoginTimeout:  defaultLoginTimeout,
			ReadySelector: defaultReadySelector,
			ProfileDir:    defaultBrowserProfileDir,
		},
		Search: Search{
			BaseURL:    defaultSearchBaseURL,
			MaxResults: defaultSearchMaxResults,
			Recency:    defaultSearchRecency,
			Timeout:    defaultSearchTimeout,
		},
		Synthesis: Synthesis{
			Provider:       SynthesisProviderNone,
			Referer:        defaultSynthesisReferer,
			Title:          defaultSynthesisTitle,
			TimeoutSeconds: defaultSynthesisTimeoutSeconds,
			MaxTokens:      defaultSynthesisMaxTokens,
		},
		Substack: Substack{
			PublicationURLTemplate: defaultPublicationURLTemplate,
			PostLimit:              defaultPostLimit,
			RequestTimeout:         defaultSubstackRequestTimeout,
		},
		Feeds: Feeds{
			RecencyHours:   defaultFeedRecencyHours,
			RequestTimeout: defaultFeedRequestTimeout,
			UserAgent:      defaultFeedUserAgent,
			MaxConcurrent:  defaultFeedMaxConcurrent,
		},
		Workflow: Workflow{
			RunDeadline:       defaultRunDeadline,
			MaxConcurrentRuns: defaultMaxConcurrentRuns,
			WatchdogInterval:  defaultWatchdogInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Generation:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
