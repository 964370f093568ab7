// Package analysis computes the per-work metric curves: centered rolling
// means and Savitzky-Golay smoothing over the raw sentiment scores, the
// cumulative fortune track, and the macro arc that summarizes a work's shape.
//
// Series values are plain float64 slices with NaN marking undefined
// positions (rolling-mean boundaries); JSON encoding maps those to null.
// Savitzky-Golay windows reduce dynamically on short series via ValidWindow;
// a window that cannot fit at all yields an omitted curve rather than an
// error, so short works still complete with whatever curves their length
// supports.
package analysis
