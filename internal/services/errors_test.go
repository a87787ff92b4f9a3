package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"dailybrief/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrUpstreamUnavailable, "fetching", "feed", "fetch failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"fetching", "feed", "fetch failed", "connection refused"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindAndHint(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{services.Wrap(services.ErrTimeout, "generating", "wait", "audio", nil), "timeout"},
		{fmt.Errorf("outer: %w", services.ErrAuthRequired), "auth_required"},
		{services.Wrap(services.ErrNoContent, "fetching", "aggregate", "empty", nil), "no_content"},
		{errors.New("plain"), "internal"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.kind {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.kind)
		}
		if tc.err != nil && services.Hint(tc.err) == "" {
			t.Fatalf("expected hint for %v", tc.err)
		}
	}
}
