package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"dailybrief/internal/aggregator"
	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/daemon"
	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
	"dailybrief/internal/notifications"
	"dailybrief/internal/preflight"
	"dailybrief/internal/session"
	"dailybrief/internal/storage"
	"dailybrief/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the dailybrief daemon and blocks until SIGINT/SIGTERM or the
// context ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stdout"}
	var logPath string
	if cfg.Paths.LogDir != "" {
		runID := time.Now().UTC().Format("20060102T150405.000Z")
		logPath = filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("dailybrief-%s.log", runID))
		outputs = append(outputs, logPath)
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if logPath != "" {
		if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update dailybrief.log link: %v\n", err)
		}
	}

	logDependencySnapshot(signalCtx, logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "dailybrief.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	db, err := storage.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open database", "database_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.data_dir permissions; a schema mismatch needs a fresh database"),
		)
		return err
	}

	generations := generation.NewStore(db)
	cat := catalog.NewStore(db)
	notifier := notifications.NewService(cfg)
	sessions := session.NewManager(cfg, session.WithLogger(logger))
	agg, err := aggregator.New(cfg, cat, aggregator.WithLogger(logger))
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create aggregator: %w", err)
	}
	workflowManager := workflow.NewManager(cfg, generations, agg, sessions,
		workflow.WithNotifier(notifier),
		workflow.WithPreferences(cat),
		workflow.WithLogger(logger),
	)

	d, err := daemon.New(cfg, daemon.Dependencies{
		DB:          db,
		Generations: generations,
		Catalog:     cat,
		Sessions:    sessions,
		Workflow:    workflowManager,
		Notifier:    notifier,
	}, logger)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and that paths.api_bind is free"),
			logging.String(logging.FieldImpact, "no generations will run"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("dailybrief daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "dailybrief.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("synthesis_provider", cfg.Synthesis.Provider),
		logging.Bool("search_key_present", cfg.Search.APIKey != ""),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.String("browser_mode", cfg.Browser.Mode),
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs, logging.Group(dep.Name,
			logging.Bool("available", dep.Available),
			logging.String("command", dep.Command),
		))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	for _, failed := range preflight.Failed(preflight.RunAll(ctx, cfg, preflight.Options{SkipNetwork: true})) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "generations depending on this may fail"),
			logging.String(logging.FieldErrorHint, "run 'dailybrief status' for details"),
		)
	}
}
