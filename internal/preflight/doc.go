// Package preflight provides readiness checks for the external classifier
// and filesystem paths that fortuna depends on.
//
// The runner calls RunAll before enqueueing any work. A failed classifier
// check aborts the run up front rather than failing every work one by one
// once scoring starts; directory and tokenizer failures abort for the same
// reason. The CLI "fortuna status" command reuses the individual check
// functions to display readiness.
package preflight
