package fitting

import (
	"gonum.org/v1/gonum/interp"
)

// Shift1D resamples a signal at a sub-pixel offset using a smooth spline:
// output[x] carries the input value at x - shift. Coordinates beyond the
// signal are edge-extended, so a shifted spectrum keeps its end values
// instead of picking up extrapolation artifacts.
func Shift1D(data []float64, shift float64) ([]float64, error) {
	n := len(data)
	if n < 2 || shift == 0 {
		out := make([]float64, n)
		copy(out, data)
		return out, nil
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	var spline interp.NaturalCubic
	if err := spline.Fit(xs, data); err != nil {
		return nil, err
	}

	out := make([]float64, n)
	for i := range out {
		x := float64(i) - shift
		if x < 0 {
			x = 0
		}
		if x > float64(n-1) {
			x = float64(n - 1)
		}
		out[i] = spline.Predict(x)
	}
	return out, nil
}
