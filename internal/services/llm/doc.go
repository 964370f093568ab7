// Package llm provides an OpenAI-compatible chat completion backend for
// sentence sentiment classification.
//
// # Classification Logic
//
// The client sends a numbered batch of sentences to the configured model with
// a strict JSON schema response format. The model returns one judgment per
// sentence (POSITIVE or NEGATIVE plus a confidence in [0,1]); the client maps
// the judgments back to input order and rejects responses that miss,
// duplicate, or mislabel sentences.
//
// # Configuration
//
// Requires api_key and model; base_url selects an alternative
// OpenAI-compatible endpoint such as a local gateway.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Classify: judge a batch of sentences.
// Client.HealthCheck: verify credentials and model access with a one-sentence
// round trip.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network timeouts, and empty
// completions with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). The SDK's internal retries are disabled so backoff is applied in
// exactly one place. Context cancellation aborts retries immediately.
package llm
