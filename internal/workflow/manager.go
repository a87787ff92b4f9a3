package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dailybrief/internal/aggregator"
	"dailybrief/internal/catalog"
	"dailybrief/internal/config"
	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
	"dailybrief/internal/notebook"
	"dailybrief/internal/notifications"
)

// Aggregator collects a user's content. It never fails; problems are carried
// in the batch.
type Aggregator interface {
	Aggregate(ctx context.Context, userID string) aggregator.Batch
}

// Sessions mints an authenticated notebook client for a user.
type Sessions interface {
	GetClient(ctx context.Context, userID string) (*notebook.Client, error)
}

// Preferences supplies per-user audio settings.
type Preferences interface {
	Settings(ctx context.Context, userID string) (catalog.Settings, error)
}

// Manager schedules and executes generation runs.
type Manager struct {
	cfg         *config.Config
	store       *generation.Store
	aggregator  Aggregator
	sessions    Sessions
	preferences Preferences
	notifier    notifications.Service
	logger      *slog.Logger
	runLogs     *RunLogs
	watchdog    *Watchdog
	now         func() time.Time

	slots chan struct{}

	mu      sync.RWMutex
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[string]context.CancelFunc
	lastErr error
	lastRun *generation.Log
}

// Option customizes a Manager.
type Option func(*Manager)

// WithNotifier replaces the notification service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithPreferences sets the per-user settings source.
func WithPreferences(prefs Preferences) Option {
	return func(m *Manager) {
		m.preferences = prefs
	}
}

// WithLogger sets the daemon logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRunLogs overrides where per-generation log files are written. Passing
// nil disables them.
func WithRunLogs(logs *RunLogs) Option {
	return func(m *Manager) {
		m.runLogs = logs
	}
}

// NewManager wires a Manager. The aggregator and session provider are
// required; notifications default to the config-driven ntfy service.
func NewManager(cfg *config.Config, store *generation.Store, agg Aggregator, sessions Sessions, opts ...Option) *Manager {
	m := &Manager{
		cfg:        cfg,
		store:      store,
		aggregator: agg,
		sessions:   sessions,
		notifier:   notifications.NewService(cfg),
		logger:     logging.NewNop(),
		runLogs:    NewRunLogs(cfg),
		now:        time.Now,
		active:     make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "workflow")

	limit := cfg.Workflow.MaxConcurrentRuns
	if limit <= 0 {
		limit = 1
	}
	m.slots = make(chan struct{}, limit)
	m.watchdog = NewWatchdog(store, m.logger, cfg.WatchdogInterval(), cfg.RunDeadline(), m.now)
	return m
}
