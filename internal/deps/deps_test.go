package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, executableName("present"))
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	results := CheckBinaries([]Requirement{
		{Name: "Configured", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Candidate", Candidates: []string{"absent", "present"}},
		{Name: "Unset"},
	})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Command != present || results[0].Detail != "" {
		t.Fatalf("expected configured binary to resolve, got %#v", results[0])
	}
	if results[1].Available || results[1].Command != "clearly-not-present-binary" || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if !results[2].Available || results[2].Command != present {
		t.Fatalf("expected second candidate to resolve, got %#v", results[2])
	}
	if results[3].Available || !strings.Contains(results[3].Detail, "not configured") {
		t.Fatalf("expected unconfigured requirement, got %#v", results[3])
	}
}

func TestResolveBrowserConfigured(t *testing.T) {
	dir := t.TempDir()
	chrome := filepath.Join(dir, executableName("my-chrome"))
	if err := os.WriteFile(chrome, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	path, err := ResolveBrowser(chrome)
	if err != nil {
		t.Fatalf("ResolveBrowser: %v", err)
	}
	if path != chrome {
		t.Fatalf("expected %q, got %q", chrome, path)
	}

	if _, err := ResolveBrowser(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing configured binary")
	}
}

func TestResolveBrowserSearchesPath(t *testing.T) {
	binDir := t.TempDir()
	chromium := filepath.Join(binDir, executableName("chromium"))
	if err := os.WriteFile(chromium, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	status := CheckBrowser("")
	if !status.Available {
		t.Fatalf("expected chromium on PATH to be found, got detail %q", status.Detail)
	}
	if status.Command != chromium {
		t.Fatalf("unexpected command %q", status.Command)
	}

	t.Setenv("PATH", t.TempDir())
	status = CheckBrowser("")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected unavailable browser with detail, got %#v", status)
	}
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
