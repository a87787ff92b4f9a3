package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"dailybrief/internal/api"
	"dailybrief/internal/config"
	"dailybrief/internal/credentials"
	"dailybrief/internal/generation"
	"dailybrief/internal/logging"
	"dailybrief/internal/notebook"
	"dailybrief/internal/services"
	"dailybrief/internal/session"
)

// loginWriteSlack is added to the login timeout when extending the write
// deadline of a blocking authenticate request.
const loginWriteSlack = 30 * time.Second

type generationReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*generation.Log, error)
	GetForUser(ctx context.Context, userID, id string) (*generation.Log, error)
}

type runScheduler interface {
	Schedule(ctx context.Context, userID string) (*generation.Log, error)
	RepairStuck(ctx context.Context) ([]string, error)
}

type sessionService interface {
	Metadata(userID string) (*credentials.Metadata, error)
	Authenticate(ctx context.Context, userID string) (session.Result, error)
	Upload(ctx context.Context, userID string, blob []byte) (session.Result, error)
	Revoke(userID string) (session.Result, error)
}

type controller interface {
	APIStatus(ctx context.Context) api.DaemonStatus
	TriggerDaily(ctx context.Context) (api.CronResponse, error)
	TestNotification(ctx context.Context) (bool, string, error)
}

type apiDeps struct {
	generations generationReader
	runs        runScheduler
	sessions    sessionService
	control     controller
}

type apiServer struct {
	bind         string
	token        string
	adminToken   string
	loginTimeout time.Duration
	logger       *slog.Logger
	deps         apiDeps

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, deps apiDeps, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:         strings.TrimSpace(cfg.Paths.APIBind),
		token:        cfg.Paths.APIToken,
		adminToken:   cfg.Paths.AdminToken,
		loginTimeout: cfg.LoginTimeout(),
		logger:       logger,
		deps:         deps,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	user := func(h http.HandlerFunc) http.HandlerFunc { return authMiddleware(s.token, h) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return adminMiddleware(s.adminToken, h) }

	mux.HandleFunc("POST /generate", user(s.handleGenerate))
	mux.HandleFunc("GET /generations", user(s.handleListGenerations))
	mux.HandleFunc("GET /generations/{id}", user(s.handleGetGeneration))

	mux.HandleFunc("GET /notebooklm/status", user(s.handleNotebookStatus))
	mux.HandleFunc("POST /notebooklm/authenticate", user(s.handleAuthenticate))
	mux.HandleFunc("DELETE /notebooklm/revoke", user(s.handleRevoke))
	mux.HandleFunc("POST /notebooklm/upload-credentials", user(s.handleUploadCredentials))

	mux.HandleFunc("POST /admin/fix-stuck-generations", admin(s.handleFixStuck))
	mux.HandleFunc("POST /admin/test-notification", admin(s.handleTestNotification))
	mux.HandleFunc("POST /cron/daily-generation", admin(s.handleDailyGeneration))

	mux.HandleFunc("GET /api/status", user(s.handleStatus))
	return withRequestID(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.log().Info("api server disabled (paths.api_bind empty)")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.log(), "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that paths.api_bind is free"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.control.APIStatus(r.Context()))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeServiceError maps a classified error to a status code and payload.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrAuthInProgress):
		status = http.StatusConflict
	case errors.Is(err, credentials.ErrInvalidUserID),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, notebook.ErrInvalidStorageState):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound), errors.Is(err, generation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrAutomationUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, services.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{
		Error: err.Error(),
		Kind:  services.Kind(err),
		Hint:  services.Hint(err),
	})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
