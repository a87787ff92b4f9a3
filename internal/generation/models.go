package generation

import "time"

// Status is the lifecycle state of a generation attempt.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusFetching   Status = "fetching"
	StatusGenerating Status = "generating"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

// DaemonStopReason is recorded on runs interrupted by daemon shutdown.
const DaemonStopReason = "daemon stopped"

var allStatuses = []Status{
	StatusScheduled,
	StatusFetching,
	StatusGenerating,
	StatusComplete,
	StatusFailed,
}

// predecessors lists, for each target status, the statuses it may be entered from.
var predecessors = map[Status][]Status{
	StatusFetching:   {StatusScheduled},
	StatusGenerating: {StatusFetching},
	StatusComplete:   {StatusGenerating},
	StatusFailed:     {StatusScheduled, StatusFetching, StatusGenerating},
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	for _, s := range allStatuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransition reports whether a run may move from one status to another.
// Movement is forward-only; failed may be entered from any non-terminal status.
func CanTransition(from, to Status) bool {
	for _, p := range predecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}

// SourcesUsed snapshots what the aggregator produced for a run.
type SourcesUsed struct {
	Priority      int      `json:"priority"`
	Feeds         int      `json:"feeds"`
	Topics        int      `json:"topics"`
	Items         int      `json:"items"`
	FailedSources []string `json:"failed_sources,omitempty"`
}

// Log is one generation attempt.
type Log struct {
	ID           string
	UserID       string
	Status       Status
	ScheduledAt  time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	DeadlineAt   *time.Time
	NotebookID   string
	SourcesUsed  *SourcesUsed
	ErrorMessage string
	AudioURL     string
	UpdatedAt    time.Time
}

// Update carries optional fields written alongside a transition.
type Update struct {
	ErrorMessage string
	AudioURL     string
	SourcesUsed  *SourcesUsed
}

// Filter narrows List queries. Zero values match everything.
type Filter struct {
	UserID         string
	Statuses       []Status
	ScheduledAfter time.Time
	Limit          int
}
