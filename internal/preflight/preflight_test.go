package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dailybrief/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSearch(t *testing.T) {
	if r := CheckSearch(config.Search{BaseURL: "https://search.example", APIKey: "pk"}); !r.Passed {
		t.Fatalf("expected configured search to pass, got %s", r.Detail)
	}
	if r := CheckSearch(config.Search{BaseURL: "https://search.example"}); r.Passed {
		t.Fatal("expected missing key to fail")
	}
	if r := CheckSearch(config.Search{APIKey: "pk"}); r.Passed {
		t.Fatal("expected missing base url to fail")
	}
}

func TestCheckLLM_Disabled(t *testing.T) {
	r := CheckLLM(context.Background(), "Synthesis LLM", config.LLMConfig{Provider: config.SynthesisProviderNone})
	if !r.Passed {
		t.Fatalf("disabled synthesis should pass, got %s", r.Detail)
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	r := CheckLLM(context.Background(), "Synthesis LLM", config.LLMConfig{Provider: config.SynthesisProviderOpenRouter})
	if r.Passed || r.Detail != "API key missing" {
		t.Fatalf("unexpected result %#v", r)
	}
}

func TestCheckLLM_OpenRouter(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	cfg := config.LLMConfig{Provider: config.SynthesisProviderOpenRouter, APIKey: "good", BaseURL: srv.URL, Model: "demo"}
	if r := CheckLLM(context.Background(), "Synthesis LLM", cfg); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}

	calls = 0
	cfg.APIKey = "bad"
	if r := CheckLLM(context.Background(), "Synthesis LLM", cfg); r.Passed {
		t.Fatal("expected failure for bad key")
	}
	if calls != 1 {
		t.Fatalf("health check should not retry, got %d calls", calls)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, Options{}); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_SkipNetwork(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.CredentialsDir = t.TempDir()
	cfg.Paths.LogDir = ""
	cfg.Search.APIKey = "pk"

	results := RunAll(context.Background(), &cfg, Options{SkipNetwork: true})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %#v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}

func TestRunAll_ReportsMissingCredentialsDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.CredentialsDir = filepath.Join(t.TempDir(), "missing")
	cfg.Paths.LogDir = ""

	failed := Failed(RunAll(context.Background(), &cfg, Options{SkipNetwork: true}))
	names := map[string]bool{}
	for _, r := range failed {
		names[r.Name] = true
	}
	if !names["Credentials directory"] || !names["News search"] {
		t.Fatalf("expected credentials dir and search failures, got %#v", failed)
	}
}
