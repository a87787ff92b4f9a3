package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dailybrief/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PERPLEXITY_API_KEY", "pplx-test")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "dailybrief")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7480" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Search.APIKey != "pplx-test" {
		t.Fatalf("expected search key from env, got %q", cfg.Search.APIKey)
	}
	if cfg.SourceReadyTimeout() != 2*time.Minute {
		t.Fatalf("unexpected source ready timeout: %s", cfg.SourceReadyTimeout())
	}
	if cfg.AudioTimeout() != 10*time.Minute {
		t.Fatalf("unexpected audio timeout: %s", cfg.AudioTimeout())
	}
	if cfg.LoginTimeout() != 5*time.Minute {
		t.Fatalf("unexpected login timeout: %s", cfg.LoginTimeout())
	}
	if cfg.FeedRecency() != 24*time.Hour {
		t.Fatalf("unexpected feed recency: %s", cfg.FeedRecency())
	}
	if cfg.Headless() {
		t.Fatal("expected interactive browser mode by default")
	}
	if cfg.Synthesis.Provider != config.SynthesisProviderNone {
		t.Fatalf("expected synthesis disabled by default, got %q", cfg.Synthesis.Provider)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.CredentialsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	info, err := os.Stat(cfg.Paths.CredentialsDir)
	if err != nil {
		t.Fatalf("stat credentials dir: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Fatalf("expected credentials dir to be owner-only, got %o", perm)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dailybrief.toml")

	type payload struct {
		Notebook struct {
			AudioFormat  string `toml:"audio_format"`
			AudioTimeout int    `toml:"audio_timeout"`
		} `toml:"notebook"`
		Browser struct {
			Mode string `toml:"mode"`
		} `toml:"browser"`
		Feeds struct {
			RecencyHours int `toml:"recency_hours"`
		} `toml:"feeds"`
	}
	custom := payload{}
	custom.Notebook.AudioFormat = "Debate"
	custom.Notebook.AudioTimeout = 900
	custom.Browser.Mode = "headless"
	custom.Feeds.RecencyHours = 48
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Notebook.AudioFormat != "debate" {
		t.Fatalf("expected audio format normalized to debate, got %q", cfg.Notebook.AudioFormat)
	}
	if cfg.AudioTimeout() != 15*time.Minute {
		t.Fatalf("expected audio timeout override, got %s", cfg.AudioTimeout())
	}
	if !cfg.Headless() {
		t.Fatal("expected headless browser mode")
	}
	if cfg.FeedRecency() != 48*time.Hour {
		t.Fatalf("expected feed recency override, got %s", cfg.FeedRecency())
	}
}

func TestEnvFallbacksForAPIKeys(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dailybrief.toml")
	if err := os.WriteFile(configPath, []byte("[synthesis]\nprovider = \"openrouter\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("OPENROUTER_API_KEY", "env-openrouter")
	t.Setenv("DAILYBRIEF_ADMIN_TOKEN", "env-admin")
	t.Setenv("DAILYBRIEF_BROWSER_MODE", "headless")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Synthesis.APIKey != "env-openrouter" {
		t.Errorf("expected synthesis key from env, got %q", cfg.Synthesis.APIKey)
	}
	if cfg.Synthesis.BaseURL == "" || cfg.Synthesis.Model == "" {
		t.Errorf("expected openrouter defaults to be applied, got %+v", cfg.Synthesis)
	}
	if cfg.Paths.AdminToken != "env-admin" {
		t.Errorf("expected admin token from env, got %q", cfg.Paths.AdminToken)
	}
	if !cfg.Headless() {
		t.Error("expected browser mode from env")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "unknown audio format",
			mutate:  func(c *config.Config) { c.Notebook.AudioFormat = "lecture" },
			wantErr: "notebook.audio_format",
		},
		{
			name:    "unknown browser mode",
			mutate:  func(c *config.Config) { c.Browser.Mode = "kiosk" },
			wantErr: "browser.mode",
		},
		{
			name: "synthesis without key",
			mutate: func(c *config.Config) {
				c.Synthesis.Provider = config.SynthesisProviderAnthropic
				c.Synthesis.APIKey = ""
			},
			wantErr: "synthesis.api_key",
		},
		{
			name:    "deadline shorter than bounded waits",
			mutate:  func(c *config.Config) { c.Workflow.RunDeadline = 600 },
			wantErr: "workflow.run_deadline",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *config.Config) { c.Notebook.AudioTimeout = 0 },
			wantErr: "notebook.audio_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat sample: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected sample config to be 0600, got %o", perm)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Notebook.AudioFormat != "deep-dive" {
		t.Fatalf("unexpected sample audio format: %q", cfg.Notebook.AudioFormat)
	}
}
