package workflow

import (
	"context"
	"errors"

	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
	"dailybrief/internal/notifications"
)

func (m *Manager) notifyCompleted(ctx context.Context, log *generation.Log) {
	payload := notifications.Payload{
		"user":          log.UserID,
		"generation_id": log.ID,
		"audio_url":     log.AudioURL,
	}
	if log.SourcesUsed != nil {
		payload["items"] = log.SourcesUsed.Items
	}
	if log.StartedAt != nil && log.CompletedAt != nil {
		payload["duration"] = log.CompletedAt.Sub(*log.StartedAt)
	}
	m.publish(ctx, notifications.EventGenerationCompleted, payload)
}

func (m *Manager) notifyFailed(ctx context.Context, log *generation.Log, message string) {
	m.publish(ctx, notifications.EventGenerationFailed, notifications.Payload{
		"user":          log.UserID,
		"generation_id": log.ID,
		"error":         message,
	})
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send notification", logging.String("event", string(event)))
			return
		}
		m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
