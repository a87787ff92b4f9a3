// Package llm provides the synthesis clients used to turn search snippets
// into spoken-style news briefs.
//
// Completer is the provider-neutral interface. Client speaks the OpenRouter
// chat completion API; AnthropicClient goes through llmkit. NewCompleter picks
// one from config and returns nil when synthesis is disabled.
//
// # Entry Points
//
// Client.Complete / AnthropicClient.Complete: prose completion.
// Client.CompleteJSON (JSONCompleter): JSON-object completion, decoded with
// DecodeLLMJSON. Topic synthesis prefers it when the provider offers it.
// HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// Client retries on HTTP 408/429/5xx errors, empty content, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). A Retry-After header overrides the backoff, capped at the max.
// Context cancellation aborts retries immediately. Transport and status
// failures wrap services.ErrUpstreamUnavailable.
package llm
