package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dailybrief/internal/content"
	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
	"dailybrief/internal/notebook"
	"dailybrief/internal/services"
)

const shutdownWriteTimeout = 10 * time.Second

// outcome is what a pipeline pass produced before the terminal write.
type outcome struct {
	used     *generation.SourcesUsed
	audioURL string
	err      error
}

func deadlineMessage(d time.Duration) string {
	return fmt.Sprintf("generation exceeded run deadline of %s", d)
}

// execute runs one log to a terminal status and returns the final record.
func (m *Manager) execute(parent context.Context, log *generation.Log) *generation.Log {
	started := m.now()
	ctx := services.WithUserID(services.WithGenerationID(parent, log.ID), log.UserID)

	logger, closer, path, err := m.runLogs.Open(m.logger, log, started)
	if err != nil {
		logging.WarnWithContext(m.logger, "run log unavailable", "run_log_unavailable",
			logging.String(logging.FieldGenerationID, log.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run details only appear in the daemon log"),
			logging.String(logging.FieldErrorHint, "check permissions on the log directory"),
		)
	}
	defer closer.Close()
	logger = logging.WithContext(ctx, logger)
	if path != "" {
		logger.Debug("run log opened", logging.String("path", path))
	}

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return m.finish(ctx, logger, log, outcome{err: ctx.Err()}, false)
	}
	defer func() { <-m.slots }()

	deadline := started.Add(m.cfg.RunDeadline())
	if log.DeadlineAt != nil {
		deadline = *log.DeadlineAt
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline.Sub(m.now()))
	defer cancel()
	m.track(log.ID, cancel)
	defer m.untrack(log.ID)

	result := m.pipeline(runCtx, logger, log)
	deadlineHit := errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	return m.finish(ctx, logger, log, result, deadlineHit)
}

// pipeline performs fetching and generating. It returns as soon as a step
// fails; the terminal transition is left to finish.
func (m *Manager) pipeline(ctx context.Context, logger *slog.Logger, log *generation.Log) outcome {
	fetchCtx := services.WithStage(ctx, string(generation.StatusFetching))
	if _, err := m.store.Transition(fetchCtx, log.ID, generation.StatusFetching, generation.Update{}); err != nil {
		return outcome{err: fmt.Errorf("enter fetching: %w", err)}
	}
	logger.Info("fetching sources", logging.String(logging.FieldStage, string(generation.StatusFetching)))

	batch := m.aggregator.Aggregate(fetchCtx, log.UserID)
	items := batch.Items()
	used := batch.SourcesUsed()
	if err := ctx.Err(); err != nil {
		return outcome{used: &used, err: err}
	}
	logger.Info("sources aggregated",
		logging.String(logging.FieldStage, string(generation.StatusFetching)),
		logging.String("summary", batch.Summary()),
	)
	if len(items) == 0 {
		msg := "no content available from any source"
		if len(batch.Problems) > 0 {
			msg += " (" + strings.Join(batch.Problems, "; ") + ")"
		}
		return outcome{used: &used, err: services.Wrap(services.ErrNoContent, "fetching", "aggregate", msg, nil)}
	}

	genCtx := services.WithStage(ctx, string(generation.StatusGenerating))
	if _, err := m.store.Transition(genCtx, log.ID, generation.StatusGenerating, generation.Update{SourcesUsed: &used}); err != nil {
		return outcome{used: &used, err: fmt.Errorf("enter generating: %w", err)}
	}
	logger.Info("generating audio",
		logging.String(logging.FieldStage, string(generation.StatusGenerating)),
		logging.Int("items", len(items)),
	)

	audioURL, err := m.generate(genCtx, logger, log, items)
	return outcome{used: &used, audioURL: audioURL, err: err}
}

// generate drives one notebook client from creation to a finished audio
// overview. The client is closed on every return path.
func (m *Manager) generate(ctx context.Context, logger *slog.Logger, log *generation.Log, items []content.Item) (string, error) {
	client, err := m.sessions.GetClient(ctx, log.UserID)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Debug("notebook client close failed", logging.Error(cerr))
		}
	}()

	notebookID, err := client.CreateNotebook(ctx, notebook.Title(m.now()))
	if err != nil {
		return "", err
	}
	if err := m.store.SetNotebookID(ctx, log.ID, notebookID); err != nil {
		logging.WarnWithContext(logger, "notebook id not recorded", "notebook_id_write_failed",
			logging.String("notebook_id", notebookID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the repair operation cannot see this notebook"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
	logger.Info("notebook created", logging.String("notebook_id", notebookID))

	sourceIDs, err := m.upload(ctx, logger, client, notebookID, items)
	if err != nil {
		return "", err
	}

	ready, err := client.WaitForSourcesReady(ctx, notebookID, sourceIDs, m.cfg.SourceReadyTimeout())
	if err != nil {
		return "", err
	}
	if ready.TimedOut || len(ready.Failed) > 0 {
		logging.WarnWithContext(logger, "generating with partially processed sources", "sources_not_ready",
			logging.Int("ready", len(ready.Ready)),
			logging.Int("pending", len(ready.Pending)),
			logging.Int("failed", len(ready.Failed)),
			logging.String(logging.FieldImpact, "the podcast may omit some sources"),
			logging.String(logging.FieldErrorHint, "raise notebook.source_ready_timeout if this repeats"),
		)
	}

	format, instructions := m.audioSettings(ctx, logger, log.UserID)
	taskID, err := client.GenerateAudio(ctx, notebookID, instructions, format)
	if err != nil {
		return "", err
	}
	logger.Info("audio requested", logging.String("task_id", taskID), logging.String("format", string(format)))

	completion, err := client.WaitForCompletion(ctx, notebookID, taskID, m.cfg.AudioTimeout())
	if err != nil {
		return "", err
	}
	if err := completion.Err(); err != nil {
		return "", err
	}
	return completion.URL, nil
}

func (m *Manager) upload(ctx context.Context, logger *slog.Logger, client *notebook.Client, notebookID string, items []content.Item) ([]string, error) {
	ids := make([]string, 0, len(items))
	var lastErr error
	for _, item := range items {
		id, err := client.AddSource(ctx, notebookID, item)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logging.WarnWithContext(logger, "source upload failed", "source_upload_failed",
				logging.String("title", item.Title),
				logging.Error(err),
				logging.String(logging.FieldImpact, "this item is left out of the podcast"),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
			)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no sources could be uploaded: %w", lastErr)
	}
	return ids, nil
}

// audioSettings prefers the user's stored format and instructions over the
// configured defaults.
func (m *Manager) audioSettings(ctx context.Context, logger *slog.Logger, userID string) (notebook.Format, string) {
	formatValue := m.cfg.Notebook.AudioFormat
	instructions := m.cfg.Notebook.Instructions
	if m.preferences != nil {
		settings, err := m.preferences.Settings(ctx, userID)
		if err != nil {
			logger.Debug("user settings unavailable; using defaults", logging.Error(err))
		} else {
			if strings.TrimSpace(settings.AudioFormat) != "" {
				formatValue = settings.AudioFormat
			}
			if strings.TrimSpace(settings.Instructions) != "" {
				instructions = settings.Instructions
			}
		}
	}
	format, err := notebook.ParseFormat(formatValue)
	if err != nil {
		logging.WarnWithContext(logger, "unknown audio format; using deep-dive", "audio_format_invalid",
			logging.String("format", formatValue),
			logging.String(logging.FieldImpact, "podcast uses the default style"),
			logging.String(logging.FieldErrorHint, "set audio_format to one of deep-dive, brief, critique, debate"),
		)
		format = notebook.FormatDeepDive
	}
	return format, instructions
}

func (m *Manager) track(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.active[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) untrack(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}
