package services

import "context"

type contextKey string

const (
	generationIDKey contextKey = "generation_id"
	userIDKey       contextKey = "user_id"
	stageKey        contextKey = "stage"
	requestIDKey    contextKey = "request_id"
)

// WithGenerationID annotates context with the generation log identifier.
func WithGenerationID(ctx context.Context, id string) context.Context {
	return withString(ctx, generationIDKey, id)
}

// GenerationIDFromContext extracts the generation log identifier if present.
func GenerationIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, generationIDKey)
}

// WithUserID annotates context with the user a run or request acts for.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user identifier if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, userIDKey)
}

// WithStage annotates context with the run stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
