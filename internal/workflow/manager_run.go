package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
	"dailybrief/internal/services"
)

// Start begins the watchdog and allows background runs.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.baseCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.watchdog.Loop(runCtx, &m.wg)
	m.logger.Info("workflow started",
		logging.Duration("run_deadline", m.cfg.RunDeadline()),
		logging.Int("max_concurrent_runs", cap(m.slots)),
	)
	return nil
}

// Stop cancels in-flight runs, waits for them to record their failure, and
// fails anything still scheduled.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	ctx, done := context.WithTimeout(context.Background(), shutdownWriteTimeout)
	defer done()
	ids, err := m.store.FailActive(ctx, generation.DaemonStopReason)
	if err != nil {
		m.logger.Error("failed to close out active generations on shutdown",
			logging.Error(err),
			logging.String(logging.FieldEventType, "shutdown_sweep_failed"),
			logging.String(logging.FieldErrorHint, "the watchdog fails them after their deadline"),
		)
		return
	}
	if len(ids) > 0 {
		m.logger.Info("failed generations left by shutdown", logging.Int("count", len(ids)))
	}
}

// Schedule records a scheduled generation and runs it in the background. The
// returned log is the initial scheduled entry.
func (m *Manager) Schedule(ctx context.Context, userID string) (*generation.Log, error) {
	m.mu.RLock()
	if !m.running {
		m.mu.RUnlock()
		return nil, services.Wrap(services.ErrValidation, "workflow", "schedule", "workflow is not running", nil)
	}
	base := m.baseCtx
	m.wg.Add(1)
	m.mu.RUnlock()

	log, err := m.create(ctx, userID)
	if err != nil {
		m.wg.Done()
		return nil, err
	}
	go func() {
		defer m.wg.Done()
		m.execute(base, log)
	}()
	return log, nil
}

// Run records and executes a generation synchronously, returning the final log.
func (m *Manager) Run(ctx context.Context, userID string) (*generation.Log, error) {
	log, err := m.create(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.execute(ctx, log), nil
}

// RepairStuck force-completes logs stuck in fetching or generating that
// already have a notebook.
func (m *Manager) RepairStuck(ctx context.Context) ([]string, error) {
	ids, err := m.store.ForceCompleteStuck(ctx)
	if err != nil {
		return nil, fmt.Errorf("repair stuck generations: %w", err)
	}
	if len(ids) > 0 {
		logging.WarnWithContext(m.logger, "force-completed stuck generations", "stuck_generations_repaired",
			logging.Int("count", len(ids)),
			logging.Any("generation_ids", ids),
			logging.String(logging.FieldImpact, "logs marked complete without a confirmed audio url"),
			logging.String(logging.FieldErrorHint, "inspect the run logs for why these runs stalled"),
		)
	}
	return ids, nil
}

func (m *Manager) create(ctx context.Context, userID string) (*generation.Log, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "schedule", "user id is required", nil)
	}
	log, err := m.store.Create(ctx, userID, m.now().Add(m.cfg.RunDeadline()))
	if err != nil {
		return nil, fmt.Errorf("schedule generation: %w", err)
	}
	m.logger.Info("generation scheduled",
		logging.String(logging.FieldGenerationID, log.ID),
		logging.String(logging.FieldUserID, userID),
	)
	return log, nil
}
