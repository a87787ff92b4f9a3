package notebook

import (
	"errors"
	"fmt"
	"strings"

	"dailybrief/internal/services"
)

var (
	// ErrNotAuthenticated means no credential exists for the user.
	ErrNotAuthenticated = fmt.Errorf("not authenticated with notebook provider: %w", services.ErrAuthRequired)
	// ErrClientUnavailable means a client could not be built from the stored
	// credential, or the client was already closed.
	ErrClientUnavailable = fmt.Errorf("notebook client unavailable: %w", services.ErrAutomationUnavailable)
	// ErrTimeout means audio synthesis exceeded its budget.
	ErrTimeout = fmt.Errorf("audio generation timed out: %w", services.ErrTimeout)
	// ErrInvalidStorageState is returned for blobs that carry no session state.
	ErrInvalidStorageState = fmt.Errorf("invalid storage state: %w", services.ErrValidation)
)

const maxErrorBody = 512

// RemoteAPIError reports a non-2xx answer from the provider.
type RemoteAPIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *RemoteAPIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("notebook %s: provider returned %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("notebook %s: provider returned %d: %s", e.Operation, e.StatusCode, body)
}

// Is classifies provider auth rejections separately from outages.
func (e *RemoteAPIError) Is(target error) bool {
	switch target {
	case services.ErrUpstreamUnavailable:
		return e.StatusCode != 401 && e.StatusCode != 403
	case services.ErrAuthRequired:
		return e.StatusCode == 401 || e.StatusCode == 403
	}
	return false
}

// Retryable reports whether polling may continue after this error.
func (e *RemoteAPIError) Retryable() bool {
	return e.StatusCode == 408 || e.StatusCode == 429 || e.StatusCode >= 500
}

// SynthesisError carries the provider's reason for a failed audio task.
type SynthesisError struct {
	Reason string
}

func (e *SynthesisError) Error() string {
	if e.Reason == "" {
		return "audio generation failed"
	}
	return "audio generation failed: " + e.Reason
}

func (e *SynthesisError) Unwrap() error {
	return services.ErrSynthesisFailed
}

func retryable(err error) bool {
	var apiErr *RemoteAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return errors.Is(err, services.ErrUpstreamUnavailable)
}
