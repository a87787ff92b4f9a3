package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dailybrief/internal/config"
	"dailybrief/internal/logging"
	"dailybrief/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), format+"-"+level+".log")
	return logPath, func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "dailybrief.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath, read := newFileLogger(t, "console", "info")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if content := read(); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath, read := newFileLogger(t, "console", "debug")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	if content := read(); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerPromotesComponentAndGeneration(t *testing.T) {
	logPath, read := newFileLogger(t, "console", "info")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithGenerationID(context.Background(), "4f1c2a9e-0000-4000-8000-000000000000")
	ctx = services.WithUserID(ctx, "alice")
	component := logging.NewComponentLogger(logger, "workflow")
	logging.WithContext(ctx, component).Info("run started", logging.String("notebook_id", "nb 1"))

	content := read()
	if !strings.Contains(content, "INFO workflow: run started [gen=4f1c2a9e]") {
		t.Fatalf("expected component and short generation prefix, got %q", content)
	}
	if !strings.Contains(content, "user_id=alice") {
		t.Fatalf("expected user id field, got %q", content)
	}
	if !strings.Contains(content, `notebook_id="nb 1"`) {
		t.Fatalf("expected quoted value with spaces, got %q", content)
	}
}

func TestJSONLoggerUsesCompactKeys(t *testing.T) {
	logPath, read := newFileLogger(t, "json", "info")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Warn("feed failed", logging.Error(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode json log line: %v", err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
	if entry["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entry["error"])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath, read := newFileLogger(t, "json", "info")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "topic search failed", "source_fetch_failed",
		logging.String(logging.FieldErrorHint, "check search.api_key"),
	)

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &entry); err != nil {
		t.Fatalf("decode json log line: %v", err)
	}
	if entry[logging.FieldEventType] != "source_fetch_failed" {
		t.Fatalf("expected event type, got %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldErrorHint] != "check search.api_key" {
		t.Fatalf("expected caller hint to win, got %v", entry[logging.FieldErrorHint])
	}
	if entry[logging.FieldImpact] == nil {
		t.Fatal("expected default impact field")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestTeeHandlerWritesToEveryAcceptingHandler(t *testing.T) {
	var infoBuf, warnBuf bytes.Buffer
	info, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &infoBuf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	warn, err := logging.New(logging.Options{Format: "json", Level: "warn", Writer: &warnBuf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger := slog.New(logging.NewTeeHandler(info.Handler(), warn.Handler(), nil)).
		With(logging.String(logging.FieldGenerationID, "gen-1"))
	logger.Info("fetching sources")
	logger.Warn("feed failed")

	if got := strings.Count(infoBuf.String(), "\n"); got != 2 {
		t.Fatalf("expected 2 lines in info sink, got %d: %s", got, infoBuf.String())
	}
	if got := strings.Count(warnBuf.String(), "\n"); got != 1 {
		t.Fatalf("expected 1 line in warn sink, got %d: %s", got, warnBuf.String())
	}
	if !strings.Contains(warnBuf.String(), "gen-1") {
		t.Fatalf("expected attrs to reach every sink, got %s", warnBuf.String())
	}
}
