package notebook

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"dailybrief/internal/content"
	"dailybrief/internal/logging"
	"dailybrief/internal/services"
)

const (
	defaultPollInterval = 5 * time.Second
	// maxPollFailures bounds consecutive transient errors while polling.
	maxPollFailures = 3
)

// Client is a scoped handle on one user's provider session. It is created per
// run and must be closed on every exit path.
type Client struct {
	remote Remote
	poll   time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.poll = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient wraps a provider adapter.
func NewClient(remote Remote, opts ...Option) *Client {
	c := &Client{remote: remote, poll: defaultPollInterval, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "notebook")
	return c
}

// ReadyResult reports source readiness after a bounded wait.
type ReadyResult struct {
	Ready    []string
	Pending  []string
	Failed   []string
	TimedOut bool
}

// CompletionState is the terminal outcome of waiting on an audio task.
type CompletionState string

const (
	CompletionComplete CompletionState = "complete"
	CompletionFailed   CompletionState = "failed"
	CompletionTimeout  CompletionState = "timeout"
)

// Completion is the result of WaitForCompletion.
type Completion struct {
	State CompletionState
	URL   string
	Error string
}

// Err converts a non-complete outcome into a classified error.
func (c Completion) Err() error {
	switch c.State {
	case CompletionComplete:
		return nil
	case CompletionTimeout:
		return ErrTimeout
	default:
		return &SynthesisError{Reason: c.Error}
	}
}

// CreateNotebook creates an empty notebook and returns its id.
func (c *Client) CreateNotebook(ctx context.Context, title string) (string, error) {
	if err := c.ensureOpen(); err != nil {
		return "", err
	}
	return c.remote.CreateNotebook(ctx, title)
}

// AddSource uploads one item. Text items are posted inline and url items as
// remote references.
func (c *Client) AddSource(ctx context.Context, notebookID string, item content.Item) (string, error) {
	if err := c.ensureOpen(); err != nil {
		return "", err
	}
	switch item.Type {
	case content.TypeText:
		title := item.Title
		if title == "" {
			title = "Source"
		}
		return c.remote.AddTextSource(ctx, notebookID, title, item.Content)
	case content.TypeURL:
		return c.remote.AddURLSource(ctx, notebookID, item.URL)
	default:
		return "", fmt.Errorf("%w: unknown content item type %q", services.ErrValidation, item.Type)
	}
}

// WaitForSourcesReady polls until every source has finished processing or the
// timeout elapses. Elapsing is not an error: the result lists what was ready.
// Only context cancellation is returned as an error.
func (c *Client) WaitForSourcesReady(ctx context.Context, notebookID string, sourceIDs []string, timeout time.Duration) (ReadyResult, error) {
	if err := c.ensureOpen(); err != nil {
		return ReadyResult{}, err
	}
	if len(sourceIDs) == 0 {
		return ReadyResult{}, nil
	}

	deadline := time.Now().Add(timeout)
	states := make(map[string]SourceState, len(sourceIDs))
	for {
		current, err := c.remote.SourceStates(ctx, notebookID, sourceIDs)
		if err != nil {
			if ctx.Err() != nil {
				return summarize(sourceIDs, states), ctx.Err()
			}
			logging.WarnWithContext(c.logger, "source status poll failed; will retry", "source_poll_failed",
				logging.String("notebook_id", notebookID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "readiness unknown until next poll"),
			)
		} else {
			for id, state := range current {
				states[id] = state
			}
		}

		result := summarize(sourceIDs, states)
		if len(result.Pending) == 0 {
			return result, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			result.TimedOut = true
			logging.WarnWithContext(c.logger, "sources not ready before timeout; continuing with ready sources", "source_ready_timeout",
				logging.String("notebook_id", notebookID),
				logging.Int("ready", len(result.Ready)),
				logging.Int("pending", len(result.Pending)),
				logging.Duration("timeout", timeout),
				logging.String(logging.FieldErrorHint, "raise notebook.source_ready_timeout if this repeats"),
				logging.String(logging.FieldImpact, "audio generated from a subset of sources"),
			)
			return result, nil
		}
		if err := sleep(ctx, min(c.poll, remaining)); err != nil {
			return result, err
		}
	}
}

func summarize(ids []string, states map[string]SourceState) ReadyResult {
	var result ReadyResult
	for _, id := range ids {
		switch states[id] {
		case SourceReady:
			result.Ready = append(result.Ready, id)
		case SourceError:
			result.Failed = append(result.Failed, id)
		default:
			result.Pending = append(result.Pending, id)
		}
	}
	return result
}

// GenerateAudio requests an audio overview and returns the task id. Empty
// instructions select DefaultInstructions.
func (c *Client) GenerateAudio(ctx context.Context, notebookID, instructions string, format Format) (string, error) {
	if err := c.ensureOpen(); err != nil {
		return "", err
	}
	if instructions == "" {
		instructions = DefaultInstructions
	}
	if format == "" {
		format = FormatDeepDive
	}
	if !slices.Contains(Formats(), format) {
		return "", fmt.Errorf("%w: unknown audio format %q", services.ErrValidation, format)
	}
	return c.remote.GenerateAudio(ctx, notebookID, instructions, format)
}

// WaitForCompletion polls an audio task until it is terminal or the timeout
// elapses, in which case a timeout completion is returned. Non-retryable
// provider errors, repeated poll failures, and context cancellation are
// returned as errors.
func (c *Client) WaitForCompletion(ctx context.Context, notebookID, taskID string, timeout time.Duration) (Completion, error) {
	if err := c.ensureOpen(); err != nil {
		return Completion{}, err
	}

	deadline := time.Now().Add(timeout)
	failures := 0
	for {
		status, err := c.remote.AudioStatus(ctx, notebookID, taskID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Completion{}, ctx.Err()
			}
			failures++
			if !retryable(err) || failures >= maxPollFailures {
				return Completion{}, err
			}
			logging.WarnWithContext(c.logger, "audio status poll failed; will retry", "audio_poll_failed",
				logging.String("task_id", taskID),
				logging.Int("attempt", failures),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "completion delayed"),
			)
		case status.State == AudioCompleted:
			return Completion{State: CompletionComplete, URL: status.URL}, nil
		case status.State == AudioFailed:
			reason := status.Error
			if reason == "" {
				reason = "Audio generation failed"
			}
			return Completion{State: CompletionFailed, Error: reason}, nil
		default:
			failures = 0
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Completion{State: CompletionTimeout, Error: "Audio generation timed out"}, nil
		}
		if err := sleep(ctx, min(c.poll, remaining)); err != nil {
			return Completion{}, err
		}
	}
}

// Close releases the remote session. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.remote.Close()
}

func (c *Client) ensureOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.remote == nil {
		return ErrClientUnavailable
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
