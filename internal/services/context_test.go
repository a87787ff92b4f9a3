package services_test

import (
	"context"
	"testing"

	"dailybrief/internal/services"
)

func TestContextHelpersRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithGenerationID(ctx, "gen-1")
	ctx = services.WithUserID(ctx, "alice")
	ctx = services.WithStage(ctx, "fetching")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.GenerationIDFromContext(ctx); !ok || id != "gen-1" {
		t.Fatalf("unexpected generation id %q (%v)", id, ok)
	}
	if user, ok := services.UserIDFromContext(ctx); !ok || user != "alice" {
		t.Fatalf("unexpected user id %q (%v)", user, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "fetching" {
		t.Fatalf("unexpected stage %q (%v)", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("unexpected request id %q (%v)", rid, ok)
	}
}

func TestContextHelpersIgnoreEmptyValues(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected empty stage to be ignored")
	}
}
