package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dailybrief/internal/config"
)

// ErrDaemonUnavailable is returned when the daemon API cannot be reached.
var ErrDaemonUnavailable = errors.New("dailybrief daemon is not reachable")

// defaultClientTimeout bounds ordinary requests. Login requests override it
// because they block until the browser flow finishes.
const defaultClientTimeout = 30 * time.Second

// HTTPError is a non-2xx daemon response.
type HTTPError struct {
	StatusCode int
	Message    string
	Kind       string
	Hint       string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Hint != "" {
		return fmt.Sprintf("%s (HTTP %d; %s)", msg, e.StatusCode, e.Hint)
	}
	return fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
}

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

// Client talks to the daemon HTTP API on behalf of one user.
type Client struct {
	base       *url.URL
	http       *http.Client
	token      string
	adminToken string
	userID     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds a client for the daemon at cfg.Paths.APIBind, sending the
// configured tokens and the given user id.
func NewClient(cfg *config.Config, userID string, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("api client requires configuration")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind is not configured")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind %q: %w", cfg.Paths.APIBind, err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	c := &Client{
		base:       base,
		http:       &http.Client{Timeout: defaultClientTimeout},
		token:      cfg.Paths.APIToken,
		adminToken: cfg.Paths.AdminToken,
		userID:     strings.TrimSpace(userID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate schedules a generation for the client's user.
func (c *Client) Generate(ctx context.Context) (GenerationLog, error) {
	var out GenerationLog
	err := c.do(ctx, http.MethodPost, "/generate", nil, nil, &out)
	return out, err
}

// ListGenerations returns the user's most recent generations.
func (c *Client) ListGenerations(ctx context.Context, limit int) ([]GenerationLog, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out GenerationListResponse
	if err := c.do(ctx, http.MethodGet, "/generations", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Generations, nil
}

// GetGeneration returns one of the user's generations.
func (c *Client) GetGeneration(ctx context.Context, id string) (GenerationLog, error) {
	var out GenerationLog
	err := c.do(ctx, http.MethodGet, "/generations/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// NotebookStatus reports whether the user has a provider session.
func (c *Client) NotebookStatus(ctx context.Context) (NotebookStatus, error) {
	var out NotebookStatus
	err := c.do(ctx, http.MethodGet, "/notebooklm/status", nil, nil, &out)
	return out, err
}

// Authenticate runs the browser login on the daemon host. It blocks until
// the login finishes or times out, so callers pass a generous context.
func (c *Client) Authenticate(ctx context.Context) (AuthResult, error) {
	var out AuthResult
	err := c.doWith(ctx, c.unbounded(), http.MethodPost, "/notebooklm/authenticate", nil, nil, &out)
	return out, err
}

// Revoke deletes the user's stored provider session.
func (c *Client) Revoke(ctx context.Context) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodDelete, "/notebooklm/revoke", nil, nil, &out)
	return out, err
}

// UploadCredentials stores a storage-state document for the user.
func (c *Client) UploadCredentials(ctx context.Context, state json.RawMessage) (AuthResult, error) {
	var out AuthResult
	body := UploadCredentialsRequest{UserID: c.userID, Credentials: state}
	err := c.do(ctx, http.MethodPost, "/notebooklm/upload-credentials", nil, body, &out)
	return out, err
}

// FixStuck force-completes generations stuck mid-flight with a notebook.
func (c *Client) FixStuck(ctx context.Context) (FixStuckResponse, error) {
	var out FixStuckResponse
	err := c.do(ctx, http.MethodPost, "/admin/fix-stuck-generations", nil, nil, &out)
	return out, err
}

// TriggerDaily schedules a generation for every user with daily generation enabled.
func (c *Client) TriggerDaily(ctx context.Context) (CronResponse, error) {
	var out CronResponse
	err := c.do(ctx, http.MethodPost, "/cron/daily-generation", nil, nil, &out)
	return out, err
}

// TestNotification asks the daemon to publish a test notification.
func (c *Client) TestNotification(ctx context.Context) (TestNotificationResponse, error) {
	var out TestNotificationResponse
	err := c.do(ctx, http.MethodPost, "/admin/test-notification", nil, nil, &out)
	return out, err
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

func (c *Client) unbounded() *http.Client {
	clone := *c.http
	clone.Timeout = 0
	return &clone
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.doWith(ctx, c.http, method, path, query, body, out)
}

func (c *Client) doWith(ctx context.Context, client *http.Client, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(HeaderUserID, c.userID)
	}
	token := c.token
	if strings.HasPrefix(path, "/admin/") || strings.HasPrefix(path, "/cron/") {
		token = c.adminToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode}
		var payload struct {
			ErrorResponse
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		switch {
		case json.Unmarshal(raw, &payload) != nil:
			httpErr.Message = strings.TrimSpace(string(raw))
		case payload.Error != "":
			httpErr.Message = payload.Error
			httpErr.Kind = payload.Kind
			httpErr.Hint = payload.Hint
		case payload.Message != "":
			// Session conflicts and timeouts carry an auth result body.
			httpErr.Message = payload.Message
		default:
			httpErr.Message = strings.TrimSpace(string(raw))
		}
		return httpErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
