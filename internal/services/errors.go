package services

import (
	"errors"
	"fmt"
	"strings"
)

// Markers for the failure classes the pipeline distinguishes. Component errors
// wrap one of these so callers and the API layer can classify with errors.Is.
var (
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrAuthRequired          = errors.New("authentication required")
	ErrAutomationUnavailable = errors.New("browser automation unavailable")
	ErrTimeout               = errors.New("timeout")
	ErrSynthesisFailed       = errors.New("synthesis failed")
	ErrNoContent             = errors.New("no content")
	ErrValidation            = errors.New("validation error")
	ErrConfiguration         = errors.New("configuration error")
	ErrNotFound              = errors.New("not found")
	ErrTransient             = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

var kinds = []struct {
	marker error
	kind   string
	hint   string
}{
	{ErrAuthRequired, "auth_required", "run 'dailybrief notebooklm login' or upload credentials"},
	{ErrAutomationUnavailable, "automation_unavailable", "install Chrome or Chromium, or set browser.binary"},
	{ErrTimeout, "timeout", "raise the matching timeout in config or retry later"},
	{ErrSynthesisFailed, "synthesis_failed", "check the provider notebook for the failure reason and request a new run"},
	{ErrNoContent, "no_content", "enable at least one publication, feed, or topic"},
	{ErrUpstreamUnavailable, "upstream_unavailable", "check network access and upstream service status"},
	{ErrValidation, "validation", "fix the request payload"},
	{ErrConfiguration, "configuration", "run 'dailybrief config validate'"},
	{ErrNotFound, "not_found", "check the identifier"},
	{ErrTransient, "transient", "retry the operation"},
}

// Kind maps an error to a stable classification string for logs and API payloads.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.kind
		}
	}
	return "internal"
}

// Hint returns an operator-facing next step for the error's class.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.hint
		}
	}
	return "check daemon logs for details"
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
