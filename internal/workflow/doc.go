// Package workflow advances ledger works through the configured processing
// stages.
//
// The Manager runs a pool of workers scoped to a single run. Each worker
// polls the ledger for the oldest work whose status starts a stage, claims it
// with a compare-and-set transition so no two workers process the same work,
// and hands it to the registered stage handler (segmenter, scorer, analyzer,
// exporter) while capturing progress and failure metadata. Heartbeats written
// during execution let the reclaimer roll works from crashed workers back to
// the start of their stage. The manager also aggregates ledger stats, calls
// stage health checks, and emits run-level notifications when processing
// starts or completes.
//
// Add new lifecycle stages by extending StageSet, updating the queue status
// enums, and teaching the manager how to transition works; this package is the
// authoritative home for that coordination logic.
package workflow
