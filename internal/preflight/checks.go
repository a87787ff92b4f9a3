package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"dailybrief/internal/config"
	"dailybrief/internal/deps"
	"dailybrief/internal/services/llm"
)

// llmCheckTimeout bounds a single synthesis health check.
const llmCheckTimeout = 30 * time.Second

// CheckLLM verifies that the synthesis provider is reachable and the key is
// valid. A disabled provider passes, since topics then fall back to raw
// snippets. OpenRouter is checked with a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.Provider == config.SynthesisProviderNone || cfg.Provider == "" {
		return Result{Name: name, Passed: true, Detail: "disabled (raw snippets)"}
	}
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	var completer llm.Completer
	if cfg.Provider == config.SynthesisProviderOpenRouter {
		completer = llm.NewClient(llm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Referer: cfg.Referer,
			Title:   cfg.Title,
		}, llm.WithRetryMaxAttempts(1))
	} else {
		built, err := llm.NewCompleter(cfg)
		if err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		completer = built
	}

	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()
	if err := completer.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable", cfg.Provider)}
}

// CheckSearch reports whether the topic news search API is configured.
func CheckSearch(cfg config.Search) Result {
	const name = "News search"
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing (topics will report errors)"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.BaseURL}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries DailyBrief can use. Both
// the daemon start snapshot and the status views share this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return []deps.Status{deps.CheckBrowser(cfg.Browser.Binary)}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
