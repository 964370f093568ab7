// Package inference provides the HTTP client for a self-hosted
// text-classification inference server, the default sentiment backend.
//
// # Wire Contract
//
// Classification posts {"inputs": [...]} to the configured base URL and
// expects one candidate list per input, each candidate carrying a label and a
// score. The top-scoring candidate per input becomes the judgment; labels
// other than POSITIVE or NEGATIVE are rejected. GET /health reports server
// readiness.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx (honoring Retry-After), network
// timeouts, and connection failures with exponential backoff (base 500ms, max
// 8s, up to 4 attempts by default). Context cancellation aborts retries
// immediately.
package inference
