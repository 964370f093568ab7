// Package queue persists the work ledger in SQLite and exposes helpers for
// driving each work's lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-work recovery, and status transitions
// that mirror the pipeline stages. Ledger rows carry stage payloads (the
// segmented sentences and their scores as JSON columns, staged bundle paths,
// and the final fortune) so stages can coordinate without additional state
// and an interrupted run can resume from the last completed stage.
//
// Rows are scoped to a run id; concurrent workers claim works with the
// compare-and-set TransitionStatus so no work is processed twice.
//
// The database is treated as transient storage for in-flight runs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for ledger semantics; when
// you add new statuses or payload fields, update schema.sql and bump
// schemaVersion.
package queue
