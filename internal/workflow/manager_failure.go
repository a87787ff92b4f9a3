package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
	"dailybrief/internal/services"
)

// finish writes the terminal transition in a context that survives the run's
// own cancellation, then notifies.
func (m *Manager) finish(ctx context.Context, logger *slog.Logger, log *generation.Log, result outcome, deadlineHit bool) *generation.Log {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownWriteTimeout)
	defer cancel()

	if result.err == nil {
		final, err := m.store.Transition(writeCtx, log.ID, generation.StatusComplete, generation.Update{
			AudioURL:    result.audioURL,
			SourcesUsed: result.used,
		})
		if err != nil {
			m.recordWriteFailure(logger, log, generation.StatusComplete, err)
			return m.reload(writeCtx, log, final)
		}
		logger.Info("generation complete",
			logging.String("audio_url", result.audioURL),
			logging.String(logging.FieldEventType, "generation_completed"),
		)
		m.setLastRun(final, nil)
		m.notifyCompleted(writeCtx, final)
		return final
	}

	message := m.failureMessage(ctx, result.err, deadlineHit)
	final, err := m.store.Transition(writeCtx, log.ID, generation.StatusFailed, generation.Update{
		ErrorMessage: message,
		SourcesUsed:  result.used,
	})
	if err != nil {
		m.recordWriteFailure(logger, log, generation.StatusFailed, err)
		return m.reload(writeCtx, log, final)
	}
	logger.Error("generation failed",
		logging.String("error_message", message),
		logging.String("error_kind", services.Kind(result.err)),
		logging.Error(result.err),
		logging.String(logging.FieldEventType, "generation_failed"),
		logging.String(logging.FieldErrorHint, services.Hint(result.err)),
	)
	m.setLastRun(final, result.err)
	m.notifyFailed(writeCtx, final, message)
	return final
}

// failureMessage is the human-readable error stored on the log.
func (m *Manager) failureMessage(ctx context.Context, err error, deadlineHit bool) string {
	switch {
	case deadlineHit:
		return deadlineMessage(m.cfg.RunDeadline())
	case ctx.Err() != nil && m.stopping():
		return generation.DaemonStopReason
	case ctx.Err() != nil:
		return "generation cancelled: " + ctx.Err().Error()
	}
	if err == nil {
		return "generation failed without error detail"
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = "generation failed"
	}
	return message
}

func (m *Manager) stopping() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseCtx != nil && m.baseCtx.Err() != nil
}

func (m *Manager) recordWriteFailure(logger *slog.Logger, log *generation.Log, to generation.Status, err error) {
	if errors.Is(err, generation.ErrInvalidTransition) {
		logger.Info("generation already finalized elsewhere",
			logging.String("target_status", string(to)),
			logging.Error(err),
		)
		return
	}
	logger.Error("failed to persist generation outcome",
		logging.String("target_status", string(to)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "generation_write_failed"),
		logging.String(logging.FieldErrorHint, "the watchdog fails this log after its deadline"),
	)
	m.setLastRun(log, err)
}

func (m *Manager) reload(ctx context.Context, log, current *generation.Log) *generation.Log {
	if current != nil {
		return current
	}
	if fresh, err := m.store.GetByID(ctx, log.ID); err == nil && fresh != nil {
		return fresh
	}
	return log
}
