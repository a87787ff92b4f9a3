package notebook

import "context"

// SourceState is the provider-side processing state of one source.
type SourceState string

const (
	SourceProcessing SourceState = "processing"
	SourceReady      SourceState = "ready"
	SourceError      SourceState = "error"
)

// AudioState is the provider-side state of an audio task.
type AudioState string

const (
	AudioPending   AudioState = "pending"
	AudioRunning   AudioState = "running"
	AudioCompleted AudioState = "completed"
	AudioFailed    AudioState = "failed"
)

// AudioStatus is one poll of an audio task.
type AudioStatus struct {
	State AudioState `json:"status"`
	URL   string     `json:"url,omitempty"`
	Error string     `json:"error,omitempty"`
}

// Remote is the provider adapter. It exposes only the operations a generation
// run needs so provider libraries stay behind it.
type Remote interface {
	CreateNotebook(ctx context.Context, title string) (string, error)
	AddTextSource(ctx context.Context, notebookID, title, text string) (string, error)
	AddURLSource(ctx context.Context, notebookID, url string) (string, error)
	SourceStates(ctx context.Context, notebookID string, sourceIDs []string) (map[string]SourceState, error)
	GenerateAudio(ctx context.Context, notebookID, instructions string, format Format) (string, error)
	AudioStatus(ctx context.Context, notebookID, taskID string) (AudioStatus, error)
	Close() error
}
