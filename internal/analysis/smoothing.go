package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// RollingMean computes a centered moving average. The value at index i
// averages the window [i - w/2, i + w - 1 - w/2]; for odd windows this is
// symmetric, for even windows the trailing side is one element shorter.
// Positions where the full window does not fit are NaN.
func RollingMean(values []float64, window int) Series {
	n := len(values)
	out := make(Series, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || window > n {
		return out
	}

	offset := (window - 1) / 2
	var sum float64
	for j := 0; j < n; j++ {
		sum += values[j]
		if j >= window {
			sum -= values[j-window]
		}
		if j >= window-1 {
			out[j-offset] = sum / float64(window)
		}
	}
	return out
}

// ValidWindow reduces a Savitzky-Golay target window to fit a series: the
// largest odd window no greater than min(target, length) that still admits a
// polynomial of the given degree. Returns 0 when no such window exists.
func ValidWindow(target, degree, length int) int {
	if degree < 0 {
		return 0
	}
	limit := target
	if length < limit {
		limit = length
	}
	if limit%2 == 0 {
		limit--
	}
	if limit < degree+1 {
		return 0
	}
	return limit
}

// SavGol applies a Savitzky-Golay filter: a least-squares polynomial of the
// given degree is fitted over each window and evaluated at its center. The
// first and last half-windows are filled by evaluating the boundary windows'
// fitted polynomials at the edge offsets, so the output has no undefined
// positions and the same length as the input.
func SavGol(values []float64, window, degree int) (Series, error) {
	n := len(values)
	if window <= 0 || window%2 == 0 {
		return nil, fmt.Errorf("savgol: window %d must be positive and odd", window)
	}
	if degree < 0 || degree >= window {
		return nil, fmt.Errorf("savgol: degree %d must be in [0, %d)", degree, window)
	}
	if n < window {
		return nil, fmt.Errorf("savgol: series length %d shorter than window %d", n, window)
	}

	proj, err := savgolProjector(window, degree)
	if err != nil {
		return nil, err
	}

	out := make(Series, n)
	half := window / 2

	// Interior: evaluating the fitted polynomial at offset zero keeps only
	// the constant coefficient, so the projector's first row acts as a
	// convolution kernel.
	weights := mat.Row(nil, 0, proj)
	for i := half; i < n-half; i++ {
		base := i - half
		var acc float64
		for j, w := range weights {
			acc += w * values[base+j]
		}
		out[i] = acc
	}

	// Edges: extend the first and last windows' polynomials outwards.
	left := fitWindow(proj, values[:window])
	for i := 0; i < half; i++ {
		out[i] = polyval(left, float64(i-half))
	}
	right := fitWindow(proj, values[n-window:])
	center := n - 1 - half
	for i := n - half; i < n; i++ {
		out[i] = polyval(right, float64(i-center))
	}

	return out, nil
}

// savgolProjector builds the least-squares projector P = (AᵀA)⁻¹Aᵀ for a
// polynomial basis over window offsets centered on zero. Multiplying P by a
// window of values yields the fitted polynomial coefficients in ascending
// order.
func savgolProjector(window, degree int) (*mat.Dense, error) {
	design := mat.NewDense(window, degree+1, nil)
	half := window / 2
	for row := 0; row < window; row++ {
		z := float64(row - half)
		v := 1.0
		for col := 0; col <= degree; col++ {
			design.Set(row, col, v)
			v *= z
		}
	}

	var gram mat.Dense
	gram.Mul(design.T(), design)
	var proj mat.Dense
	if err := proj.Solve(&gram, design.T()); err != nil {
		return nil, fmt.Errorf("savgol: singular design for window %d degree %d: %w", window, degree, err)
	}
	return &proj, nil
}

func fitWindow(proj *mat.Dense, values []float64) []float64 {
	rows, _ := proj.Dims()
	var fitted mat.VecDense
	fitted.MulVec(proj, mat.NewVecDense(len(values), values))
	coeffs := make([]float64, rows)
	for k := range coeffs {
		coeffs[k] = fitted.AtVec(k)
	}
	return coeffs
}

func polyval(coeffs []float64, z float64) float64 {
	var v float64
	for k := len(coeffs) - 1; k >= 0; k-- {
		v = v*z + coeffs[k]
	}
	return v
}
