package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dailybrief/internal/services"
)

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": `{"ok":true}`,
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": "```json\n{\"ok\":true}\n```",
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func replyWith(choice map[string]any) map[string]any {
	return map[string]any{"choices": []any{choice}}
}

func TestClientCompleteSendsProseRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := req["response_format"]; ok {
			t.Errorf("prose request must not ask for JSON output: %v", req)
		}
		if req["max_tokens"] != float64(800) {
			t.Errorf("expected max_tokens 800, got %v", req["max_tokens"])
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		messages := req["messages"].([]any)
		if len(messages) != 2 {
			t.Errorf("expected system and user messages, got %d", len(messages))
		}
		_ = json.NewEncoder(w).Encode(replyWith(map[string]any{
			"message": map[string]any{"content": "  Markets rallied on Tuesday [1].  "},
		}))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", MaxTokens: 800})
	text, err := client.Complete(context.Background(), "You are a news editor.", "Summarize these snippets")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "Markets rallied on Tuesday [1]." {
		t.Fatalf("unexpected completion %q", text)
	}
}

func TestClientCompleteJSONToolCallsArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(replyWith(map[string]any{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"content": "",
				"tool_calls": []any{
					map[string]any{
						"type": "function",
						"id":   "call_1",
						"function": map[string]any{
							"name":      "brief",
							"arguments": `{"headline":"Rates held"}`,
						},
					},
				},
			},
		}))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	raw, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	var parsed struct {
		Headline string `json:"headline"`
	}
	if err := DecodeLLMJSON(raw, &parsed); err != nil || parsed.Headline != "Rates held" {
		t.Fatalf("unexpected payload %q (%v)", raw, err)
	}
}

func TestClientCompleteEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(replyWith(map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": ""},
		}))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected completion to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
}

func TestClientCompleteDeltaAndLegacyText(t *testing.T) {
	for name, choice := range map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": "from delta"}},
		"legacy": {"finish_reason": "stop", "text": "from delta"},
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(replyWith(choice))
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
			text, err := client.Complete(context.Background(), "", "user")
			if err != nil {
				t.Fatalf("Complete returned error: %v", err)
			}
			if text != "from delta" {
				t.Fatalf("unexpected completion %q", text)
			}
		})
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		_ = json.NewEncoder(w).Encode(replyWith(map[string]any{
			"message": map[string]any{"content": "brief"},
		}))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	text, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "brief" {
		t.Fatalf("unexpected completion %q", text)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		content := ""
		if calls >= 3 {
			content = "third time lucky"
		}
		_ = json.NewEncoder(w).Encode(replyWith(map[string]any{
			"finish_reason": "stop",
			"message":       map[string]any{"content": content},
		}))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
		WithRetryMaxAttempts(5),
	)
	text, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if text != "third time lucky" || calls != 3 {
		t.Fatalf("unexpected result %q after %d calls", text, calls)
	}
}

func TestClientNonRetryableStatusIsUpstreamError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"}, WithSleeper(func(time.Duration) {}))
	_, err := client.Complete(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream classification, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries for 400, got %d calls", calls)
	}
}

func TestClientCompleteRequiresKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected missing api key error")
	}
}

func TestDecodeLLMJSONExtractsObject(t *testing.T) {
	for name, content := range map[string]string{
		"fence":       "```JSON\n{\"brief\":\"ok\"}\n```",
		"prose":       "Here you go: {\"brief\":\"ok\"} Let me know.",
		"fence+prose": "```\nSure. {\"brief\":\"ok\"}\n```",
	} {
		t.Run(name, func(t *testing.T) {
			var parsed struct {
				Brief string `json:"brief"`
			}
			if err := DecodeLLMJSON(content, &parsed); err != nil {
				t.Fatalf("DecodeLLMJSON returned error: %v", err)
			}
			if parsed.Brief != "ok" {
				t.Fatalf("unexpected brief %q", parsed.Brief)
			}
		})
	}
}

func TestDecodeLLMJSONRejectsProse(t *testing.T) {
	var parsed map[string]any
	err := DecodeLLMJSON("no structure here", &parsed)
	if err == nil || !strings.Contains(err.Error(), "payload snippet: no structure here") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
	if err := DecodeLLMJSON("   ", &parsed); err == nil {
		t.Fatal("expected empty payload error")
	}
}

func TestClientCompleteJSONAsksForObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Temperature    float64           `json:"temperature"`
			MaxTokens      int               `json:"max_tokens"`
			ResponseFormat map[string]string `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != "json_object" || req.Temperature != 0 || req.MaxTokens != 0 {
			t.Errorf("unexpected JSON request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(replyWith(map[string]any{
			"message": map[string]any{"content": `{"brief":"ok"}`},
		}))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", MaxTokens: 800})
	raw, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil || raw != `{"brief":"ok"}` {
		t.Fatalf("unexpected payload %q (%v)", raw, err)
	}
	if _, err := client.CompleteJSON(context.Background(), " ", "user"); err == nil {
		t.Fatal("expected missing system prompt error")
	}
}
