package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"dailybrief/internal/api"
	"dailybrief/internal/credentials"
	"dailybrief/internal/services"
)

// headerRequestID correlates a request with daemon log lines.
const headerRequestID = "X-Request-ID"

// withRequestID tags every request context with a correlation id, taken
// from the caller when supplied, and echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !bearerMatches(r, token) {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// adminMiddleware guards operator routes. Unlike authMiddleware an empty
// token disables the route entirely.
func adminMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token == "" || !bearerMatches(r, token) {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func bearerMatches(r *http.Request, token string) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	presented := strings.TrimPrefix(auth, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}

// callerID returns the X-User-ID header, writing a 400 when it is missing or
// not a valid user id.
func (s *apiServer) callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(api.HeaderUserID))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return "", false
	}
	if err := credentials.ValidateUserID(userID); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return userID, true
}
