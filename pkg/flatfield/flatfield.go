// Package flatfield registers a normalized flat against the science
// spectral image by sub-pixel cross-correlation and divides it out.
package flatfield

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"ifureduce/pkg/fitting"
	"ifureduce/pkg/frame"
)

// Provenance keywords recorded by Apply.
const (
	KeyShift     = "XSHFT"
	KeyShiftStd  = "SHFTSTD"
	KeyIsShifted = "ISSHFTED"
	KeyIsFlatted = "ISFLATED"
)

// Options control flat registration.
type Options struct {
	// ShiftEnabled allows resampling the flat at the measured shift.
	// When disabled the unshifted flat is always used.
	ShiftEnabled bool

	// ReferenceRow is the slitlet row used for the headline shift
	// measurement. Chosen away from strong sky lines.
	ReferenceRow int

	// StabilityThreshold is the maximum allowed row-to-row standard
	// deviation of the measured shifts, in pixels. Above it the shift
	// measurement is considered unreliable and the flat is used as is.
	StabilityThreshold float64

	Correlate fitting.CorrelateOptions
}

// DefaultOptions match the calibrated registration behaviour.
func DefaultOptions() Options {
	return Options{
		ShiftEnabled:       true,
		ReferenceRow:       9,
		StabilityThreshold: 0.3,
		Correlate:          fitting.DefaultCorrelateOptions(),
	}
}

// Result reports how the flat was applied.
type Result struct {
	// Shift is the measured sub-pixel shift at the reference row.
	Shift float64

	// Stability is the standard deviation of the per-row shifts.
	Stability float64

	// Shifted is true when the flat was resampled before dividing.
	Shifted bool

	// Degenerate is true when the reference row could not be
	// correlated and the unshifted fallback was taken.
	Degenerate bool
}

// Normalize divides a flat by its own mean so that flat-fielding
// preserves the overall flux scale.
func Normalize(flat *frame.Frame) (*frame.Frame, error) {
	mean := flat.Mean()
	if mean == 0 {
		return nil, errors.New("flat has zero mean")
	}
	out := flat.Clone()
	for i, v := range out.Data {
		out.Data[i] = v / mean
	}
	return out, nil
}

// Apply flat-fields a science spectral image with a normalized flat. The
// horizontal sub-pixel shift between science and flat is measured per
// row; when shifting is enabled and the per-row shifts agree to within
// the stability threshold, the flat is spline-resampled at the reference
// shift before dividing. A degenerate correlation falls back to the
// unshifted flat instead of producing NaNs. The outcome is recorded in
// the output header.
func Apply(sci, flat *frame.Frame, opt Options) (*frame.Frame, Result, error) {
	if sci.Width != flat.Width || sci.Height != flat.Height {
		return nil, Result{}, fmt.Errorf("science %dx%d and flat %dx%d differ in shape",
			sci.Width, sci.Height, flat.Width, flat.Height)
	}
	if opt.ReferenceRow < 0 || opt.ReferenceRow >= sci.Height {
		return nil, Result{}, fmt.Errorf("reference row %d outside image of %d rows",
			opt.ReferenceRow, sci.Height)
	}

	res := Result{}
	shifts := make([]float64, 0, sci.Height)
	for y := 0; y < sci.Height; y++ {
		dx, err := fitting.CrossCorrelate(sci.Row(y), flat.Row(y), opt.Correlate)
		if err != nil {
			if errors.Is(err, fitting.ErrDegenerateCorrelation) {
				if y == opt.ReferenceRow {
					res.Degenerate = true
				}
				continue
			}
			return nil, Result{}, err
		}
		if y == opt.ReferenceRow {
			res.Shift = dx
		}
		shifts = append(shifts, dx)
	}
	if len(shifts) > 1 {
		res.Stability = stat.StdDev(shifts, nil)
	} else if len(shifts) == 0 {
		res.Degenerate = true
	}

	applied := flat
	if opt.ShiftEnabled && !res.Degenerate && res.Stability < opt.StabilityThreshold {
		shifted := flat.Clone()
		for y := 0; y < flat.Height; y++ {
			row, err := fitting.Shift1D(flat.Row(y), res.Shift)
			if err != nil {
				return nil, Result{}, err
			}
			copy(shifted.Row(y), row)
		}
		applied = shifted
		res.Shifted = true
	}

	out := sci.Clone()
	for i, v := range out.Data {
		d := applied.Data[i]
		if d == 0 || math.IsNaN(d) {
			out.Data[i] = 0
			continue
		}
		out.Data[i] = v / d
	}

	out.Header.Set(KeyShift, res.Shift, "X shift of flat image (pix)")
	out.Header.Set(KeyShiftStd, res.Stability, "Row-to-row std of measured shifts (pix)")
	out.Header.Set(KeyIsShifted, res.Shifted, "True: flat was resampled at XSHFT")
	out.Header.Set(KeyIsFlatted, true, "True: flat fielding is applied")
	return out, res, nil
}
