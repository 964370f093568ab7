// Package export defines the JSON artifact bundles the pipeline produces and
// writes them atomically. Each work yields two bundles, the volatility view
// and the cumulative fortune view, and a run yields one corpus bundle ranking
// every successful work. Undefined curve positions encode as JSON null so
// viewers can leave gaps instead of drawing zeros.
package export
