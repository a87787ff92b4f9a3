package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"dailybrief/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []api.DependencyStatus{
		{Name: "Chromium", Available: true, Command: "chromium"},
		{Name: "ntfy", Available: false, Optional: true, Detail: "not configured"},
		{Name: "Other", Available: false},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[OK] Ready (command: chromium)") {
		t.Fatalf("unexpected ready line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN] not configured") {
		t.Fatalf("optional dependency should warn, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[ERROR] not available") {
		t.Fatalf("required dependency should error, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "ntfy, Other") {
		t.Fatalf("expected missing summary, got %q", lines[3])
	}
}

func TestCheckLines(t *testing.T) {
	lines := checkLines([]api.CheckResult{
		{Name: "Data directory", Passed: true, Detail: "/tmp"},
		{Name: "News search", Passed: false, Detail: "API key missing"},
	}, false)
	if !strings.Contains(lines[0], "[OK] /tmp") || !strings.Contains(lines[1], "[ERROR] API key missing") {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestStatusLabel(t *testing.T) {
	cases := map[string]string{
		"scheduled":  "Scheduled",
		"generating": "Generating",
		"":           "Unknown",
	}
	for in, want := range cases {
		if got := statusLabel(in); got != want {
			t.Fatalf("statusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintTablePlainWhenNotTerminal(t *testing.T) {
	var b strings.Builder
	printTable(&b, []string{"A", "B"}, [][]string{{"1"}}, nil)
	if b.String() != "A\tB\n1\t\n" {
		t.Fatalf("unexpected plain table %q", b.String())
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
