package analysis

// WindowSpec names a Savitzky-Golay target window and polynomial degree.
type WindowSpec struct {
	Window int
	Degree int
}

// WindowCurve ties a computed curve back to the window that produced it.
// For Savitzky-Golay curves Effective is the window actually used after
// dynamic reduction; 0 means the series was too short and Values is nil.
type WindowCurve struct {
	Window    int
	Degree    int
	Effective int
	Values    Series
}

// Omitted reports whether the curve was skipped for lack of data.
func (c WindowCurve) Omitted() bool {
	return c.Window > 0 && c.Effective == 0
}

// Options select the curves computed for one work.
type Options struct {
	RollingWindows []int
	SavGol         []WindowSpec
	MacroWindow    int
	MacroDegree    int
}

// Result carries every curve computed for one work. The volatility view
// smooths the raw scores; the cumulative view smooths the running sum. The
// macro arc is the cumulative Savitzky-Golay curve at the configured macro
// window, the single trace each work contributes to the combined fortune map.
type Result struct {
	Scores             Series
	Rolling            []WindowCurve
	Smoothed           []WindowCurve
	Cumulative         Series
	CumulativeRolling  []WindowCurve
	CumulativeSmoothed []WindowCurve
	MacroArc           WindowCurve
}

// Cumulative computes the running sum of the scores.
func Cumulative(values []float64) Series {
	out := make(Series, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		out[i] = sum
	}
	return out
}

// Compute derives all configured curves from a work's score series.
// Degenerate smoothing windows never fail the computation; the affected
// curves come back omitted and Result.OmittedWindows reports them.
func Compute(scores []float64, opts Options) Result {
	raw := make(Series, len(scores))
	copy(raw, scores)
	result := Result{Scores: raw}

	for _, window := range opts.RollingWindows {
		result.Rolling = append(result.Rolling, WindowCurve{
			Window:    window,
			Effective: window,
			Values:    RollingMean(scores, window),
		})
	}
	for _, spec := range opts.SavGol {
		result.Smoothed = append(result.Smoothed, smoothCurve(scores, spec))
	}

	result.Cumulative = Cumulative(scores)
	running := []float64(result.Cumulative)

	// The cumulative view tracks act-level drift, so only the widest rolling
	// window applies there.
	if window := largestWindow(opts.RollingWindows); window > 0 {
		result.CumulativeRolling = append(result.CumulativeRolling, WindowCurve{
			Window:    window,
			Effective: window,
			Values:    RollingMean(running, window),
		})
	}
	for _, spec := range opts.SavGol {
		result.CumulativeSmoothed = append(result.CumulativeSmoothed, smoothCurve(running, spec))
	}

	macro := WindowSpec{Window: opts.MacroWindow, Degree: opts.MacroDegree}
	if existing := findCurve(result.CumulativeSmoothed, macro); existing != nil {
		result.MacroArc = *existing
	} else {
		result.MacroArc = smoothCurve(running, macro)
	}

	return result
}

// UltimateFortune is the final value of the raw cumulative track.
func (r Result) UltimateFortune() (float64, bool) {
	return r.Cumulative.Last()
}

// OmittedWindows lists the Savitzky-Golay target windows skipped because the
// series is too short, deduplicated in encounter order.
func (r Result) OmittedWindows() []int {
	var out []int
	seen := make(map[int]bool)
	record := func(curves []WindowCurve) {
		for _, curve := range curves {
			if curve.Omitted() && !seen[curve.Window] {
				seen[curve.Window] = true
				out = append(out, curve.Window)
			}
		}
	}
	record(r.Smoothed)
	record(r.CumulativeSmoothed)
	record([]WindowCurve{r.MacroArc})
	return out
}

func smoothCurve(values []float64, spec WindowSpec) WindowCurve {
	curve := WindowCurve{Window: spec.Window, Degree: spec.Degree}
	effective := ValidWindow(spec.Window, spec.Degree, len(values))
	if effective == 0 {
		return curve
	}
	smoothed, err := SavGol(values, effective, spec.Degree)
	if err != nil {
		return curve
	}
	curve.Effective = effective
	curve.Values = smoothed
	return curve
}

func largestWindow(windows []int) int {
	largest := 0
	for _, w := range windows {
		if w > largest {
			largest = w
		}
	}
	return largest
}

func findCurve(curves []WindowCurve, spec WindowSpec) *WindowCurve {
	for i := range curves {
		if curves[i].Window == spec.Window && curves[i].Degree == spec.Degree {
			return &curves[i]
		}
	}
	return nil
}
