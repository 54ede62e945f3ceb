// Package llm provides an OpenAI-compatible chat completion client.
//
// It backs company recognition in the discover stage, relevance refinement,
// report generation and question answering. Every caller treats the model
// as optional: a missing API key or an unreachable endpoint surfaces as
// services.ErrUpstreamUnavailable and scores and evidence stay available.
//
// # Entry Points
//
// NewClient: construct client from Config (or FromConfig for the app config).
// Client.Complete: free text answer for a list of messages.
// Client.CompleteJSON: system/user prompts with a JSON-only response.
// DecodeJSON: tolerant decoding of model output (code fences, prose wrappers).
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, empty content and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). Retry-After is honoured. Context cancellation aborts retries.
package llm
