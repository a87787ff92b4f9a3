package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
)

// Watchdog fails generation logs that outlived their run deadline.
type Watchdog struct {
	store    *generation.Store
	logger   *slog.Logger
	interval time.Duration
	deadline time.Duration
	now      func() time.Time
}

// NewWatchdog creates a watchdog that sweeps every interval.
func NewWatchdog(store *generation.Store, logger *slog.Logger, interval, deadline time.Duration, now func() time.Time) *Watchdog {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watchdog{
		store:    store,
		logger:   logger.With(logging.String(logging.FieldComponent, "workflow-watchdog")),
		interval: interval,
		deadline: deadline,
		now:      now,
	}
}

// Sweep fails every non-terminal log whose deadline has passed and returns
// their ids.
func (w *Watchdog) Sweep(ctx context.Context) ([]string, error) {
	ids, err := w.store.FailExpired(ctx, w.now(), deadlineMessage(w.deadline))
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		logging.WarnWithContext(w.logger, "failed generations past their run deadline", "run_deadline_exceeded",
			logging.Int("count", len(ids)),
			logging.Any("generation_ids", ids),
			logging.String(logging.FieldImpact, "these users get no podcast for the affected runs"),
			logging.String(logging.FieldErrorHint, "check notebook provider latency and workflow.run_deadline"),
		)
	}
	return ids, nil
}

// Loop sweeps immediately and then every interval until ctx is done.
func (w *Watchdog) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	w.sweepLogged(ctx)
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepLogged(ctx)
		}
	}
}

func (w *Watchdog) sweepLogged(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			w.logger.Debug("daemon shutting down, watchdog sweep cancelled")
			return
		}
		logging.WarnWithContext(w.logger, "watchdog sweep failed", "watchdog_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "expired runs stay in progress until the next sweep"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
}
