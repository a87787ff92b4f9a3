package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dailybrief/internal/api"
	"dailybrief/internal/logging"
	"dailybrief/internal/services"
	"dailybrief/internal/session"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
	// maxCredentialsBody bounds an uploaded storage-state document.
	maxCredentialsBody = 4 << 20
)

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	ctx := services.WithUserID(r.Context(), userID)
	log, err := s.deps.runs.Schedule(ctx, userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.FromLog(log))
}

func (s *apiServer) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}
	logs, err := s.deps.generations.ListByUser(r.Context(), userID, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GenerationListResponse{Generations: api.FromLogs(logs)})
}

func (s *apiServer) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	log, err := s.deps.generations.GetForUser(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if log == nil {
		s.writeError(w, http.StatusNotFound, "Generation not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromLog(log))
}

func (s *apiServer) handleNotebookStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	meta, err := s.deps.sessions.Metadata(userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromMetadata(meta))
}

// handleAuthenticate blocks for the whole browser login, so the write
// deadline is pushed past the login timeout.
func (s *apiServer) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(s.loginTimeout + loginWriteSlack)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.log().Debug("could not extend write deadline", logging.Error(err))
	}
	result, err := s.deps.sessions.Authenticate(r.Context(), userID)
	s.writeAuthResult(w, r, result, err)
}

func (s *apiServer) handleRevoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	result, err := s.deps.sessions.Revoke(userID)
	s.writeAuthResult(w, r, result, err)
}

func (s *apiServer) handleUploadCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(w, r)
	if !ok {
		return
	}
	var req api.UploadCredentialsRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCredentialsBody))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "credentials payload too large")
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.UserID) != userID {
		s.writeError(w, http.StatusForbidden, "Cannot upload credentials for another user")
		return
	}
	trimmed := strings.TrimSpace(string(req.Credentials))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		s.writeError(w, http.StatusBadRequest, "No credentials provided")
		return
	}
	result, err := s.deps.sessions.Upload(r.Context(), userID, req.Credentials)
	s.writeAuthResult(w, r, result, err)
}

// writeAuthResult reports a session result. A login timeout that still
// stored a partial session is a 200 with status "timeout".
func (s *apiServer) writeAuthResult(w http.ResponseWriter, r *http.Request, result session.Result, err error) {
	payload := api.AuthResult{
		Status:            result.Status,
		Message:           result.Message,
		CredentialsStored: result.CredentialsStored,
	}
	if err != nil && !result.CredentialsStored {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, session.ErrAuthInProgress):
			status = http.StatusConflict
		case errors.Is(err, session.ErrLoginTimeout):
			status = http.StatusGatewayTimeout
		default:
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, status, payload)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleFixStuck(w http.ResponseWriter, r *http.Request) {
	ids, err := s.deps.runs.RepairStuck(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.FixStuckResponse{Fixed: len(ids), GenerationIDs: ids})
}

func (s *apiServer) handleDailyGeneration(w http.ResponseWriter, r *http.Request) {
	resp, err := s.deps.control.TriggerDaily(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.deps.control.TestNotification(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TestNotificationResponse{Sent: sent, Message: message})
}
