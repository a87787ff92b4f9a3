package notebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dailybrief/internal/services"
)

// HTTPDoer describes the HTTP client used by HTTPRemote.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPRemote speaks the provider's JSON API, attaching the captured session
// cookies to every request.
type HTTPRemote struct {
	baseURL string
	cookies []*http.Cookie
	client  HTTPDoer
	idle    interface{ CloseIdleConnections() }
}

// NewHTTPRemote builds a remote bound to one user's storage state.
func NewHTTPRemote(baseURL string, state StorageState, timeout time.Duration) *HTTPRemote {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	client := &http.Client{Timeout: timeout, Transport: transport}
	return &HTTPRemote{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		cookies: state.HTTPCookies(time.Now()),
		client:  client,
		idle:    transport,
	}
}

// NewHTTPRemoteWithClient is used when the caller controls transport.
func NewHTTPRemoteWithClient(baseURL string, state StorageState, client HTTPDoer) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		cookies: state.HTTPCookies(time.Now()),
		client:  client,
	}
}

type createNotebookRequest struct {
	Title string `json:"title"`
}

type idResponse struct {
	ID string `json:"id"`
}

type addSourceRequest struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

type sourceStatesResponse struct {
	Sources []struct {
		ID     string      `json:"id"`
		Status SourceState `json:"status"`
	} `json:"sources"`
}

type generateAudioRequest struct {
	Instructions string `json:"instructions"`
	Format       Format `json:"format"`
}

type generateAudioResponse struct {
	TaskID string `json:"task_id"`
}

// CreateNotebook creates an empty notebook and returns its ID.
func (r *HTTPRemote) CreateNotebook(ctx context.Context, title string) (string, error) {
	var resp idResponse
	if err := r.do(ctx, "create notebook", http.MethodPost, "/api/notebooks", createNotebookRequest{Title: title}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", services.Wrap(services.ErrUpstreamUnavailable, "notebook", "create notebook", "response missing id", nil)
	}
	return resp.ID, nil
}

// AddTextSource uploads pasted text as a source.
func (r *HTTPRemote) AddTextSource(ctx context.Context, notebookID, title, text string) (string, error) {
	return r.addSource(ctx, notebookID, addSourceRequest{Type: "text", Title: title, Content: text})
}

// AddURLSource adds a web page the provider fetches itself.
func (r *HTTPRemote) AddURLSource(ctx context.Context, notebookID, sourceURL string) (string, error) {
	return r.addSource(ctx, notebookID, addSourceRequest{Type: "url", URL: sourceURL})
}

func (r *HTTPRemote) addSource(ctx context.Context, notebookID string, body addSourceRequest) (string, error) {
	var resp idResponse
	path := "/api/notebooks/" + url.PathEscape(notebookID) + "/sources"
	if err := r.do(ctx, "add source", http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", services.Wrap(services.ErrUpstreamUnavailable, "notebook", "add source", "response missing id", nil)
	}
	return resp.ID, nil
}

// SourceStates reports the processing state of each requested source.
func (r *HTTPRemote) SourceStates(ctx context.Context, notebookID string, sourceIDs []string) (map[string]SourceState, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(sourceIDs, ","))
	path := "/api/notebooks/" + url.PathEscape(notebookID) + "/sources?" + query.Encode()
	var resp sourceStatesResponse
	if err := r.do(ctx, "source status", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	states := make(map[string]SourceState, len(resp.Sources))
	for _, s := range resp.Sources {
		states[s.ID] = s.Status
	}
	return states, nil
}

// GenerateAudio starts an audio overview and returns the task ID.
func (r *HTTPRemote) GenerateAudio(ctx context.Context, notebookID, instructions string, format Format) (string, error) {
	var resp generateAudioResponse
	path := "/api/notebooks/" + url.PathEscape(notebookID) + "/audio"
	if err := r.do(ctx, "generate audio", http.MethodPost, path, generateAudioRequest{Instructions: instructions, Format: format}, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", services.Wrap(services.ErrUpstreamUnavailable, "notebook", "generate audio", "response missing task_id", nil)
	}
	return resp.TaskID, nil
}

// AudioStatus polls an audio generation task.
func (r *HTTPRemote) AudioStatus(ctx context.Context, notebookID, taskID string) (AudioStatus, error) {
	var status AudioStatus
	path := "/api/notebooks/" + url.PathEscape(notebookID) + "/audio/" + url.PathEscape(taskID)
	if err := r.do(ctx, "audio status", http.MethodGet, path, nil, &status); err != nil {
		return AudioStatus{}, err
	}
	return status, nil
}

// Close releases pooled connections.
func (r *HTTPRemote) Close() error {
	if r.idle != nil {
		r.idle.CloseIdleConnections()
	}
	return nil
}

func (r *HTTPRemote) do(ctx context.Context, operation, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrUpstreamUnavailable, "notebook", operation, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteAPIError{Operation: operation, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrUpstreamUnavailable, "notebook", operation, "decode response", err)
	}
	return nil
}
