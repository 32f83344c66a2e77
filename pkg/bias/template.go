// Package bias derives and applies the per-column bias template: the
// expected overscan signal shape along the readout axis. A template is
// either a saved calibration product built from a dedicated bias exposure
// or, failing that, estimated from the frame's own top overscan rows.
package bias

import (
	"errors"
	"fmt"
	"os"

	"github.com/montanaflynn/stats"

	"ifureduce/pkg/frame"
)

// ErrMissingCalibration is returned when a calibration product is absent
// or carries an incompatible version tag. Callers are expected to fall
// back to a self-derived estimate and record the degradation.
var ErrMissingCalibration = errors.New("calibration file missing or incompatible")

// ErrDimensionMismatch is returned when a bias template does not match
// the frame it should be applied to. There is no safe way to proceed;
// the caller must re-derive the template or abort the frame.
var ErrDimensionMismatch = errors.New("bias template length does not match frame")

// fallbackRows is how many top rows are averaged when no template file
// is available. The top rows sit in the vertical overscan and carry the
// bias shape without sky signal.
const fallbackRows = 13

// TemplatePath builds the canonical calibration file name for a binning
// and detector pair, e.g. "bias_template12.fits".
func TemplatePath(prefix string, binX, detID int) string {
	return fmt.Sprintf("%s%d%d.fits", prefix, binX, detID)
}

// BuildTemplate computes a bias template from a bias exposure: the
// sigma-clipped mean of every column over all rows. Clipping at nsigma
// rejects cosmic-ray hits that would otherwise bias single columns.
func BuildTemplate(fr *frame.Frame, nsigma float64) []float64 {
	tmpl := make([]float64, fr.Width)
	col := make([]float64, fr.Height)
	for x := 0; x < fr.Width; x++ {
		for y := 0; y < fr.Height; y++ {
			col[y] = fr.At(x, y)
		}
		tmpl[x] = clippedMean(col, nsigma)
	}
	return tmpl
}

// clippedMean iteratively rejects samples beyond nsigma standard
// deviations from the mean and returns the mean of the survivors.
func clippedMean(data []float64, nsigma float64) float64 {
	work := make([]float64, len(data))
	copy(work, data)
	for iter := 0; iter < 5; iter++ {
		mean, err := stats.Mean(work)
		if err != nil {
			return 0
		}
		sd, err := stats.StandardDeviation(work)
		if err != nil || sd == 0 {
			return mean
		}
		kept := work[:0]
		for _, v := range work {
			if v >= mean-nsigma*sd && v <= mean+nsigma*sd {
				kept = append(kept, v)
			}
		}
		if len(kept) == len(work) {
			return mean
		}
		work = kept
	}
	mean, _ := stats.Mean(work)
	return mean
}

// SaveTemplate writes a template as a 1-D version-tagged FITS product.
func SaveTemplate(path string, tmpl []float64, overwrite bool) error {
	fr := frame.New(len(tmpl), 1)
	copy(fr.Data, tmpl)
	if err := frame.PutVersion(fr.Header); err != nil {
		return err
	}
	return frame.Write(path, fr, overwrite)
}

// LoadTemplate reads a saved bias template and validates it against the
// frame width it will be applied along. A missing file or a stale
// version tag is reported as ErrMissingCalibration; a template of the
// wrong length is an ErrDimensionMismatch and cannot be recovered from.
func LoadTemplate(path string, width int) ([]float64, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingCalibration, path)
	}
	fr, err := frame.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingCalibration, path, err)
	}
	if !frame.CheckVersion(fr.Header) {
		return nil, fmt.Errorf("%w: %s has an incompatible version tag", ErrMissingCalibration, path)
	}
	if len(fr.Data) != width {
		return nil, fmt.Errorf("%w: template %s has %d samples, frame width is %d",
			ErrDimensionMismatch, path, len(fr.Data), width)
	}
	return fr.Data, nil
}

// FallbackTemplate estimates the bias shape from the frame itself as the
// per-column mean of the top overscan rows.
func FallbackTemplate(fr *frame.Frame) []float64 {
	n := fallbackRows
	if n > fr.Height {
		n = fr.Height
	}
	tmpl := make([]float64, fr.Width)
	for x := 0; x < fr.Width; x++ {
		sum := 0.0
		for y := fr.Height - n; y < fr.Height; y++ {
			sum += fr.At(x, y)
		}
		tmpl[x] = sum / float64(n)
	}
	return tmpl
}
