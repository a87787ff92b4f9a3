package workflow

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"dailybrief/internal/config"
	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
)

// RunLogs writes one log file per generation under <log_dir>/generations.
type RunLogs struct {
	baseDir string
	level   string
	format  string
}

// NewRunLogs returns nil when no log directory is configured.
func NewRunLogs(cfg *config.Config) *RunLogs {
	if cfg == nil || strings.TrimSpace(cfg.Paths.LogDir) == "" {
		return nil
	}
	level := cfg.Logging.Level
	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	return &RunLogs{
		baseDir: filepath.Join(cfg.Paths.LogDir, "generations"),
		level:   level,
		format:  "json",
	}
}

// Dir is where run logs are written.
func (r *RunLogs) Dir() string {
	if r == nil {
		return ""
	}
	return r.baseDir
}

// Open returns a logger that writes to base and to the run's own file. The
// closer releases the file; it is never nil.
func (r *RunLogs) Open(base *slog.Logger, log *generation.Log, started time.Time) (*slog.Logger, io.Closer, string, error) {
	if r == nil || log == nil {
		return base, nopCloser{}, "", nil
	}
	if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
		return base, nopCloser{}, "", fmt.Errorf("ensure run log directory: %w", err)
	}
	path := filepath.Join(r.baseDir, r.filename(log, started))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return base, nopCloser{}, "", fmt.Errorf("open run log: %w", err)
	}
	fileLogger, err := logging.New(logging.Options{Level: r.level, Format: r.format, Writer: file})
	if err != nil {
		_ = file.Close()
		return base, nopCloser{}, "", err
	}
	logger := slog.New(logging.NewTeeHandler(base.Handler(), fileLogger.Handler()))
	return logger, file, path, nil
}

func (r *RunLogs) filename(log *generation.Log, started time.Time) string {
	timestamp := started.UTC().Format("20060102T150405")
	user := sanitizeSlug(log.UserID)
	if user == "" {
		user = "user"
	}
	id := log.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s.log", timestamp, user, id)
}

func sanitizeSlug(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(value))
	lastDash := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(unicode.ToLower(r))
			lastDash = false
		default:
			if !lastDash {
				builder.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(builder.String(), "-")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
