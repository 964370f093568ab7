// Package textutil holds small text helpers shared across the pipeline:
// turning arbitrary strings into filesystem-safe work keys and turning work
// keys back into human-readable display titles.
package textutil
