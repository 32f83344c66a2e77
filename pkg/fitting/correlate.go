package fitting

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateCorrelation marks a correlation attempt on a signal with
// no variance. The caller should fall back to the unregistered reference
// instead of propagating NaNs.
var ErrDegenerateCorrelation = errors.New("degenerate correlation: input has no variance")

// CorrelateOptions control the sub-pixel cross-correlation.
type CorrelateOptions struct {
	// Step is the resampling grid spacing in original-pixel units.
	Step float64

	// Detrend subtracts a sigma-clipped low-order Chebyshev baseline
	// from both signals before correlating.
	Detrend    bool
	Order      int
	Iterations int
	HighNsig   float64
	LowNsig    float64
}

// DefaultCorrelateOptions match the calibrated registration behaviour.
func DefaultCorrelateOptions() CorrelateOptions {
	return CorrelateOptions{
		Step:       0.01,
		Detrend:    false,
		Order:      1,
		Iterations: 3,
		HighNsig:   3.0,
		LowNsig:    3.0,
	}
}

// resample fits a cubic spline through data sampled at 0..n-1 and
// evaluates it on the fine grid.
func resample(data []float64, grid []float64) ([]float64, error) {
	xs := make([]float64, len(data))
	for i := range xs {
		xs[i] = float64(i)
	}
	var spline interp.NaturalCubic
	if err := spline.Fit(xs, data); err != nil {
		return nil, err
	}
	out := make([]float64, len(grid))
	for i, x := range grid {
		out[i] = spline.Predict(x)
	}
	return out, nil
}

// CrossCorrelate measures the sub-pixel shift of data with respect to ref
// by interpolated cross-correlation: both signals are resampled on a fine
// uniform grid, optionally detrended, and fully cross-correlated; the lag
// of the correlation maximum converted back to original-pixel units is
// the measured shift. A positive result means data is shifted towards
// larger pixel coordinates relative to ref.
func CrossCorrelate(data, ref []float64, opt CorrelateOptions) (float64, error) {
	if len(data) != len(ref) {
		return 0, fmt.Errorf("signal lengths differ: %d vs %d", len(data), len(ref))
	}
	n := len(data)
	if n < 4 {
		return 0, fmt.Errorf("signal too short to correlate: %d samples", n)
	}
	if opt.Step <= 0 {
		opt.Step = 0.01
	}
	if stat.Variance(data, nil) == 0 || stat.Variance(ref, nil) == 0 {
		return 0, ErrDegenerateCorrelation
	}

	// Interior fine grid; the first and last original pixels are left
	// out so the spline never extrapolates.
	m := int((float64(n-2) - 1e-9) / opt.Step)
	grid := make([]float64, m)
	for i := range grid {
		grid[i] = 1 + float64(i)*opt.Step
	}

	a, err := resample(data, grid)
	if err != nil {
		return 0, err
	}
	b, err := resample(ref, grid)
	if err != nil {
		return 0, err
	}
	if opt.Detrend {
		if a, err = detrend(grid, a, opt); err != nil {
			return 0, err
		}
		if b, err = detrend(grid, b, opt); err != nil {
			return 0, err
		}
	}

	// Full cross-correlation over lags -(m-1)..m-1.
	corr := make([]float64, 2*m-1)
	for lag := -(m - 1); lag <= m-1; lag++ {
		lo, hi := 0, m
		if lag > 0 {
			hi = m - lag
		} else {
			lo = -lag
		}
		sum := 0.0
		for i := lo; i < hi; i++ {
			sum += a[i+lag] * b[i]
		}
		corr[lag+m-1] = sum
	}

	best := floats.MaxIdx(corr)
	return float64(best-(m-1)) * opt.Step, nil
}

func detrend(grid, data []float64, opt CorrelateOptions) ([]float64, error) {
	fit, _, err := FitChebyshevClipped(grid, data, opt.Order, opt.Iterations,
		opt.HighNsig, opt.LowNsig)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = v - fit.Eval(grid[i])
	}
	return out, nil
}
