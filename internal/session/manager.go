package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dailybrief/internal/config"
	"dailybrief/internal/credentials"
	"dailybrief/internal/logging"
	"dailybrief/internal/notebook"
)

// Result statuses mirror the HTTP payload.
const (
	StatusSuccess = "success"
	StatusTimeout = "timeout"
	StatusError   = "error"
	StatusRevoked = "revoked"
)

// Result summarises an authenticate, upload, or revoke call.
type Result struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	CredentialsStored bool   `json:"credentials_stored"`
}

// RemoteFactory materialises a stored session into a provider adapter.
type RemoteFactory func(state notebook.StorageState) (notebook.Remote, error)

// Manager owns provider sessions for all users. Logins are exclusive per user
// and independent across users. A metadata cache fronts the credential store
// and is refreshed on every successful capture and evicted on revoke.
type Manager struct {
	store      credentials.Store
	browser    AuthProvider
	newRemote  RemoteFactory
	clientOpts []notebook.Option
	logger     *slog.Logger
	now        func() time.Time

	cacheMu sync.RWMutex
	cache   map[string]credentials.Metadata
	// revision is bumped on every eviction; a store read only fills the
	// cache if the user's revision is unchanged since the read began.
	revision map[string]uint64

	loginMu  sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore overrides the credential store.
func WithStore(store credentials.Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithBrowserProvider overrides the interactive login provider.
func WithBrowserProvider(provider AuthProvider) Option {
	return func(m *Manager) {
		if provider != nil {
			m.browser = provider
		}
	}
}

// WithRemoteFactory overrides how stored sessions become provider adapters.
func WithRemoteFactory(factory RemoteFactory) Option {
	return func(m *Manager) {
		if factory != nil {
			m.newRemote = factory
		}
	}
}

// WithClientOptions appends options applied to every notebook client.
func WithClientOptions(opts ...notebook.Option) Option {
	return func(m *Manager) {
		m.clientOpts = append(m.clientOpts, opts...)
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for authenticated_at.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager wires a Manager from config: a FileStore under the credentials
// directory, a browser login provider, and HTTP notebook adapters.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		logger:   logging.NewNop(),
		now:      time.Now,
		cache:    make(map[string]credentials.Metadata),
		revision: make(map[string]uint64),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	base := m.logger
	m.logger = logging.NewComponentLogger(base, "session")

	if m.store == nil {
		m.store = credentials.NewFileStore(cfg.Paths.CredentialsDir, credentials.NewSealer(cfg.Credentials.EncryptionKey))
	}
	if m.browser == nil {
		m.browser = NewBrowserProvider(cfg, base)
	}
	if m.newRemote == nil {
		baseURL, timeout := cfg.Notebook.APIBaseURL, time.Duration(cfg.Notebook.RequestTimeout)*time.Second
		m.newRemote = func(state notebook.StorageState) (notebook.Remote, error) {
			return notebook.NewHTTPRemote(baseURL, state, timeout), nil
		}
	}
	m.clientOpts = append([]notebook.Option{
		notebook.WithPollInterval(cfg.PollInterval()),
		notebook.WithLogger(base),
	}, m.clientOpts...)
	return m
}

// IsAuthenticated reports whether a credential record exists for the user.
// Store errors are logged and reported as unauthenticated.
func (m *Manager) IsAuthenticated(userID string) bool {
	meta, err := m.Metadata(userID)
	if err != nil {
		logging.WarnWithContext(m.logger, "credential lookup failed", "credential_lookup_failed",
			logging.String(logging.FieldUserID, userID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check credentials_dir permissions and ownership"),
			logging.String(logging.FieldImpact, "user treated as unauthenticated"),
		)
		return false
	}
	return meta != nil
}

// Metadata returns cached or stored credential metadata, or nil when the user
// has no record.
func (m *Manager) Metadata(userID string) (*credentials.Metadata, error) {
	m.cacheMu.RLock()
	meta, ok := m.cache[userID]
	rev := m.revision[userID]
	m.cacheMu.RUnlock()
	if ok {
		return &meta, nil
	}

	stored, err := m.store.Metadata(userID)
	if err != nil || stored == nil {
		return nil, err
	}
	if !m.rememberAt(*stored, rev) {
		// A revoke raced this read; the record may already be gone.
		return m.store.Metadata(userID)
	}
	return stored, nil
}

// Authenticate runs the interactive browser login for a user and stores the
// captured session. A login timeout still stores the partial state.
func (m *Manager) Authenticate(ctx context.Context, userID string) (Result, error) {
	return m.acquire(ctx, userID, m.browser)
}

// Upload stores a storage-state blob captured outside the daemon.
func (m *Manager) Upload(ctx context.Context, userID string, blob []byte) (Result, error) {
	return m.acquire(ctx, userID, NewBlobProvider(blob))
}

func (m *Manager) acquire(ctx context.Context, userID string, provider AuthProvider) (Result, error) {
	if err := credentials.ValidateUserID(userID); err != nil {
		return Result{Status: StatusError, Message: err.Error()}, err
	}
	release, err := m.begin(userID)
	if err != nil {
		return Result{Status: StatusError, Message: "Authentication already in progress"}, err
	}
	defer release()

	logger := m.logger.With(logging.String(logging.FieldUserID, userID), logging.String("provider", provider.Name()))
	capture, acquireErr := provider.Acquire(ctx, userID)

	if acquireErr != nil && !(errors.Is(acquireErr, ErrLoginTimeout) && len(capture.Blob) > 0) {
		return m.failure(logger, acquireErr), classify(acquireErr)
	}

	record := credentials.Record{
		UserID:          userID,
		Blob:            capture.Blob,
		AuthenticatedAt: m.now().UTC(),
		Provider:        provider.Name(),
		Partial:         capture.Partial,
	}
	if err := m.store.Save(record); err != nil {
		m.evict(userID)
		logging.ErrorWithContext(logger, "failed to store credentials", "credential_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check credentials_dir permissions"),
		)
		return Result{Status: StatusError, Message: "Failed to store credentials"}, fmt.Errorf("%w: store credentials: %w", ErrAuthenticationFailed, err)
	}
	meta, err := m.store.Metadata(userID)
	if err != nil || meta == nil {
		m.evict(userID)
	} else {
		m.remember(*meta)
	}

	if acquireErr != nil {
		logging.WarnWithContext(logger, "login timed out; partial session stored", "login_timeout",
			logging.String(logging.FieldErrorHint, "run the login again and finish signing in before the timeout"),
			logging.String(logging.FieldImpact, "stored session may not be usable for generation"),
		)
		return Result{
			Status:            StatusTimeout,
			Message:           "Login not completed in time; partial session saved",
			CredentialsStored: true,
		}, acquireErr
	}
	logger.Info("provider session stored", logging.Bool("partial", record.Partial))
	return Result{Status: StatusSuccess, Message: "Successfully authenticated with NotebookLM", CredentialsStored: true}, nil
}

func (m *Manager) failure(logger *slog.Logger, err error) Result {
	switch {
	case errors.Is(err, ErrAutomationUnavailable):
		logging.ErrorWithContext(logger, "browser automation unavailable", "automation_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install Chrome or Chromium, or set browser.binary"),
		)
		return Result{Status: StatusError, Message: "Browser automation is not available on this host"}
	case errors.Is(err, ErrLoginTimeout):
		logging.WarnWithContext(logger, "login timed out with no session state", "login_timeout",
			logging.String(logging.FieldErrorHint, "run the login again and finish signing in before the timeout"),
			logging.String(logging.FieldImpact, "user remains unauthenticated"),
		)
		return Result{Status: StatusTimeout, Message: "Login not completed in time"}
	default:
		logging.WarnWithContext(logger, "authentication failed", "authentication_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "user remains unauthenticated"),
		)
		return Result{Status: StatusError, Message: err.Error()}
	}
}

func classify(err error) error {
	if errors.Is(err, ErrAutomationUnavailable) || errors.Is(err, ErrLoginTimeout) ||
		errors.Is(err, ErrAuthenticationFailed) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
}

// GetClient returns a notebook client bound to the user's stored session. The
// caller must Close it.
func (m *Manager) GetClient(ctx context.Context, userID string) (*notebook.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record, err := m.store.Load(userID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if record == nil {
		m.evict(userID)
		return nil, notebook.ErrNotAuthenticated
	}
	state, err := notebook.ParseStorageState(record.Blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", notebook.ErrClientUnavailable, err)
	}
	remote, err := m.newRemote(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", notebook.ErrClientUnavailable, err)
	}
	return notebook.NewClient(remote, m.clientOpts...), nil
}

// Revoke deletes the user's record and cache entry. Revoking an
// unauthenticated user succeeds.
func (m *Manager) Revoke(userID string) (Result, error) {
	if err := credentials.ValidateUserID(userID); err != nil {
		return Result{Status: StatusError, Message: err.Error()}, err
	}
	m.evict(userID)
	err := m.store.Delete(userID)
	m.evict(userID)
	if err != nil {
		return Result{Status: StatusError, Message: "Failed to revoke credentials"}, err
	}
	m.logger.Info("provider session revoked", logging.String(logging.FieldUserID, userID))
	return Result{Status: StatusRevoked, Message: "NotebookLM credentials revoked"}, nil
}

// InProgress reports whether a login is currently running for the user.
func (m *Manager) InProgress(userID string) bool {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	_, ok := m.inFlight[userID]
	return ok
}

func (m *Manager) begin(userID string) (func(), error) {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()
	if _, busy := m.inFlight[userID]; busy {
		return nil, ErrAuthInProgress
	}
	m.inFlight[userID] = struct{}{}
	return func() {
		m.loginMu.Lock()
		delete(m.inFlight, userID)
		m.loginMu.Unlock()
	}, nil
}

func (m *Manager) remember(meta credentials.Metadata) {
	m.cacheMu.Lock()
	m.cache[meta.UserID] = meta
	m.cacheMu.Unlock()
}

// rememberAt caches meta only if no eviction happened since rev was read.
func (m *Manager) rememberAt(meta credentials.Metadata, rev uint64) bool {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	if m.revision[meta.UserID] != rev {
		return false
	}
	m.cache[meta.UserID] = meta
	return true
}

func (m *Manager) evict(userID string) {
	m.cacheMu.Lock()
	delete(m.cache, userID)
	m.revision[userID]++
	m.cacheMu.Unlock()
}
