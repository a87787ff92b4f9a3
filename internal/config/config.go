package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, bind address, and API token configuration.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	LogDir         string `toml:"log_dir"`
	CredentialsDir string `toml:"credentials_dir"`
	APIBind        string `toml:"api_bind"`
	APIToken       string `toml:"api_token"`
	AdminToken     string `toml:"admin_token"`
}

// Notebook contains settings for the audio-synthesis notebook provider.
type Notebook struct {
	APIBaseURL         string `toml:"api_base_url"`
	LoginURL           string `toml:"login_url"`
	CookieDomain       string `toml:"cookie_domain"`
	SourceReadyTimeout int    `toml:"source_ready_timeout"`
	AudioTimeout       int    `toml:"audio_timeout"`
	PollInterval       int    `toml:"poll_interval"`
	RequestTimeout     int    `toml:"request_timeout"`
	AudioFormat        string `toml:"audio_format"`
	Instructions       string `toml:"instructions"`
}

// Browser controls the automation engine used to capture provider sessions.
type Browser struct {
	// Mode is "interactive" (visible window) or "headless".
	Mode          string `toml:"mode"`
	Binary        string `toml:"binary"`
	LoginTimeout  int    `toml:"login_timeout"`
	ReadySelector string `toml:"ready_selector"`
	ProfileDir    string `toml:"profile_dir"`
}

// Search contains configuration for the topic news search API.
type Search struct {
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	MaxResults int    `toml:"max_results"`
	Recency    string `toml:"recency"`
	Timeout    int    `toml:"timeout"`
}

// Synthesis contains LLM settings used to turn search snippets into a brief.
type Synthesis struct {
	// Provider is "openrouter", "anthropic", or "none".
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTokens      int    `toml:"max_tokens"`
}

// Substack contains configuration for priority publication fetching.
type Substack struct {
	PublicationURLTemplate string `toml:"publication_url_template"`
	PostLimit              int    `toml:"post_limit"`
	RequestTimeout         int    `toml:"request_timeout"`
}

// Feeds contains configuration for RSS/Atom feed fetching.
type Feeds struct {
	RecencyHours   int    `toml:"recency_hours"`
	RequestTimeout int    `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
	MaxConcurrent  int    `toml:"max_concurrent"`
}

// Credentials contains optional at-rest protection for stored sessions.
type Credentials struct {
	EncryptionKey string `toml:"encryption_key"`
}

// Workflow contains generation run timing and concurrency limits.
type Workflow struct {
	RunDeadline       int `toml:"run_deadline"`
	MaxConcurrentRuns int `toml:"max_concurrent_runs"`
	WatchdogInterval  int `toml:"watchdog_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Generation     bool   `toml:"generation"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for DailyBrief.
//
// Configuration sections by subsystem:
//   - Paths: directories, API bind address, and tokens
//   - Notebook: provider endpoints and the bounded waits around audio generation
//   - Browser: automation engine used for provider login
//   - Search and Synthesis: topic news search and summarization
//   - Substack and Feeds: publication and feed fetching
//   - Credentials: optional encryption of stored sessions
//   - Workflow: run deadline, concurrency, watchdog cadence
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Notebook      Notebook      `toml:"notebook"`
	Browser       Browser       `toml:"browser"`
	Search        Search        `toml:"search"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Substack      Substack      `toml:"substack"`
	Feeds         Feeds         `toml:"feeds"`
	Credentials   Credentials   `toml:"credentials"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// Real environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dailybrief.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The credentials directory is owner-only.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if err := os.MkdirAll(c.Paths.CredentialsDir, 0o700); err != nil {
		return fmt.Errorf("create credentials directory %q: %w", c.Paths.CredentialsDir, err)
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "dailybrief.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "dailybrief.lock")
}

// BrowserProfileDir returns the persistent browser profile directory for a user.
func (c *Config) BrowserProfileDir(userID string) string {
	return filepath.Join(c.Browser.ProfileDir, userID)
}

// Headless reports whether browser automation runs without a visible window.
func (c *Config) Headless() bool {
	return c.Browser.Mode == BrowserModeHeadless
}

// SourceReadyTimeout is the bounded wait for uploaded sources to finish processing.
func (c *Config) SourceReadyTimeout() time.Duration {
	return seconds(c.Notebook.SourceReadyTimeout)
}

// AudioTimeout is the bounded wait for audio synthesis to complete.
func (c *Config) AudioTimeout() time.Duration {
	return seconds(c.Notebook.AudioTimeout)
}

// PollInterval is the delay between provider status polls.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Notebook.PollInterval)
}

// LoginTimeout is the bounded wait for the user to finish a browser login.
func (c *Config) LoginTimeout() time.Duration {
	return seconds(c.Browser.LoginTimeout)
}

// RunDeadline is the overall budget for a single generation run.
func (c *Config) RunDeadline() time.Duration {
	return seconds(c.Workflow.RunDeadline)
}

// WatchdogInterval is how often expired runs are swept.
func (c *Config) WatchdogInterval() time.Duration {
	return seconds(c.Workflow.WatchdogInterval)
}

// FeedRecency is the window of feed entries kept by the feed fetcher.
func (c *Config) FeedRecency() time.Duration {
	return time.Duration(c.Feeds.RecencyHours) * time.Hour
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	// The sample may later hold tokens, so keep it owner-only.
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the synthesis provider connection settings.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxTokens      int
}

// SynthesisLLM returns the synthesis provider settings.
func (c *Config) SynthesisLLM() LLMConfig {
	return LLMConfig{
		Provider:       c.Synthesis.Provider,
		APIKey:         strings.TrimSpace(c.Synthesis.APIKey),
		BaseURL:        strings.TrimSpace(c.Synthesis.BaseURL),
		Model:          strings.TrimSpace(c.Synthesis.Model),
		Referer:        strings.TrimSpace(c.Synthesis.Referer),
		Title:          strings.TrimSpace(c.Synthesis.Title),
		TimeoutSeconds: c.Synthesis.TimeoutSeconds,
		MaxTokens:      c.Synthesis.MaxTokens,
	}
}
