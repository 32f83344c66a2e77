// Package fitting holds the shared numerical routines of the pipeline:
// sigma-clipped Chebyshev fits, sub-pixel cross-correlation and spline
// resampling of 1-D spectra.
package fitting

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ChebFit is a fitted Chebyshev polynomial. The abscissa is rescaled to
// [-1, 1] internally; Eval expects coordinates from the fitted range.
type ChebFit struct {
	coeffs     []float64
	xmin, xmax float64
}

// chebBasis evaluates T_0..T_order at u via the recurrence.
func chebBasis(u float64, order int, out []float64) {
	out[0] = 1
	if order >= 1 {
		out[1] = u
	}
	for k := 2; k <= order; k++ {
		out[k] = 2*u*out[k-1] - out[k-2]
	}
}

func (c *ChebFit) scale(x float64) float64 {
	if c.xmax == c.xmin {
		return 0
	}
	return 2*(x-c.xmin)/(c.xmax-c.xmin) - 1
}

// Eval returns the fitted value at x.
func (c *ChebFit) Eval(x float64) float64 {
	basis := make([]float64, len(c.coeffs))
	chebBasis(c.scale(x), len(c.coeffs)-1, basis)
	v := 0.0
	for k, ck := range c.coeffs {
		v += ck * basis[k]
	}
	return v
}

// FitChebyshev computes a weighted least-squares Chebyshev fit of the
// given order. A nil weight vector means uniform weights.
func FitChebyshev(x, y, w []float64, order int) (*ChebFit, error) {
	n := len(x)
	if n != len(y) {
		return nil, errors.New("x and y lengths differ")
	}
	if n < order+1 {
		return nil, errors.New("not enough points for fit order")
	}
	fit := &ChebFit{coeffs: make([]float64, order+1), xmin: x[0], xmax: x[0]}
	for _, xi := range x {
		fit.xmin = math.Min(fit.xmin, xi)
		fit.xmax = math.Max(fit.xmax, xi)
	}

	a := mat.NewDense(n, order+1, nil)
	b := mat.NewDense(n, 1, nil)
	basis := make([]float64, order+1)
	for i := 0; i < n; i++ {
		wi := 1.0
		if w != nil {
			wi = math.Sqrt(w[i])
		}
		chebBasis(fit.scale(x[i]), order, basis)
		for k := 0; k <= order; k++ {
			a.Set(i, k, basis[k]*wi)
		}
		b.Set(i, 0, y[i]*wi)
	}

	var qr mat.QR
	qr.Factorize(a)
	var c mat.Dense
	if err := qr.SolveTo(&c, false, b); err != nil {
		return nil, err
	}
	for k := 0; k <= order; k++ {
		fit.coeffs[k] = c.At(k, 0)
	}
	return fit, nil
}

// WeightedMeanStd returns the weighted mean and standard deviation.
func WeightedMeanStd(data, w []float64) (mean, std float64) {
	sum := 0.0
	for _, wi := range w {
		sum += wi
	}
	if sum == 0 {
		return 0, 0
	}
	for i, v := range data {
		mean += v * w[i]
	}
	mean /= sum
	variance := 0.0
	for i, v := range data {
		d := v - mean
		variance += d * d * w[i]
	}
	return mean, math.Sqrt(variance / sum)
}

// FitChebyshevClipped fits with iterative outlier rejection: after each
// fit the weighted residual deviation is computed and points beyond the
// highNsig/lowNsig bounds get weight zero before the refit. The loop runs
// a fixed iteration count; the final weight vector is returned so tests
// can check convergence deterministically.
func FitChebyshevClipped(x, y []float64, order, iterations int, highNsig, lowNsig float64) (*ChebFit, []float64, error) {
	n := len(x)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}

	fit, err := FitChebyshev(x, y, weights, order)
	if err != nil {
		return nil, nil, err
	}

	residuals := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		for i := range residuals {
			residuals[i] = y[i] - fit.Eval(x[i])
		}
		_, sig := WeightedMeanStd(residuals, weights)
		high := highNsig * sig
		low := -lowNsig * sig
		for i, r := range residuals {
			if r > high || r < low {
				weights[i] = 0
			}
		}
		fit, err = FitChebyshev(x, y, weights, order)
		if err != nil {
			return nil, nil, err
		}
	}
	return fit, weights, nil
}
