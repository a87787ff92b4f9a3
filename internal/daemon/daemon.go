package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"dailybrief/internal/api"
	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/deps"
	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
	"dailybrief/internal/notifications"
	"dailybrief/internal/preflight"
	"dailybrief/internal/session"
	"dailybrief/internal/storage"
	"dailybrief/internal/workflow"
)

// Dependencies are the long-lived services the daemon coordinates. DB is
// optional and closed by Close when present.
type Dependencies struct {
	DB          *storage.DB
	Generations *generation.Store
	Catalog     *catalog.Store
	Sessions    *session.Manager
	Workflow    *workflow.Manager
	Notifier    notifications.Service
}

// Daemon coordinates the orchestrator and HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *storage.DB
	generations *generation.Store
	catalog     *catalog.Store
	sessions    *session.Manager
	workflow    *workflow.Manager
	notifier    notifications.Service
	logPath     string

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	LogPath      string
	Preflight    []preflight.Result
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, d Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || d.Generations == nil || d.Catalog == nil || d.Sessions == nil || d.Workflow == nil {
		return nil, errors.New("daemon requires config, generation store, catalog, sessions, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	daemon := &Daemon{
		cfg:         cfg,
		logger:      logger,
		db:          d.DB,
		generations: d.Generations,
		catalog:     d.Catalog,
		sessions:    d.Sessions,
		workflow:    d.Workflow,
		notifier:    notifier,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}
	if cfg.Paths.LogDir != "" {
		daemon.logPath = filepath.Join(cfg.Paths.LogDir, "dailybrief.log")
	}
	daemon.api = newAPIServer(cfg, apiDeps{
		generations: d.Generations,
		runs:        d.Workflow,
		sessions:    d.Sessions,
		control:     daemon,
	}, logger)
	return daemon, nil
}

// Start acquires the daemon lock, starts the orchestrator, and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if dir := filepath.Dir(d.lockPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure lock directory: %w", err)
		}
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dailybrief daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("dailybrief daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.api.address()),
	)
	return nil
}

// Stop stops the API and orchestrator and releases the daemon lock.
// In-flight generations end failed with the daemon-stopped reason.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("dailybrief daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddress returns the bound API address, or "" when the API is disabled
// or not started.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status. Preflight skips network checks
// so the status route stays fast.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		Preflight:    preflight.RunAll(ctx, d.cfg, preflight.Options{SkipNetwork: true}),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}

// APIStatus returns Status in its transport form.
func (d *Daemon) APIStatus(ctx context.Context) api.DaemonStatus {
	status := d.Status(ctx)
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		LogPath:      status.LogPath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Preflight:    api.FromChecks(status.Preflight),
		Dependencies: api.FromDependencies(status.Dependencies),
	}
}

// TriggerDaily schedules a generation for every user with daily generation
// enabled. A failure for one user does not stop the others.
func (d *Daemon) TriggerDaily(ctx context.Context) (api.CronResponse, error) {
	users, err := d.catalog.DailyUsers(ctx)
	if err != nil {
		return api.CronResponse{}, fmt.Errorf("list daily users: %w", err)
	}
	resp := api.CronResponse{Scheduled: []api.GenerationLog{}}
	for _, userID := range users {
		log, err := d.workflow.Schedule(ctx, userID)
		if err != nil {
			logging.WarnWithContext(d.logger, "daily generation not scheduled", "daily_schedule_failed",
				logging.String(logging.FieldUserID, userID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "user receives no brief today"),
				logging.String(logging.FieldErrorHint, "run 'dailybrief generate' for the user once the cause is fixed"),
			)
			resp.Failed = append(resp.Failed, api.CronFailure{UserID: userID, Error: err.Error()})
			continue
		}
		resp.Scheduled = append(resp.Scheduled, api.FromLog(log))
	}
	d.logger.Info("daily generation triggered",
		logging.Int("scheduled", len(resp.Scheduled)),
		logging.Int("failed", len(resp.Failed)),
	)
	return resp, nil
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
