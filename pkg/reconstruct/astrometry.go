package reconstruct

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"ifureduce/pkg/frame"
)

// Metadata keywords carried over from the source exposure into the
// reconstructed image.
var transferKeys = []string{
	"EXP-ID", "FOC-VAL", "OBJECT", "EXPTIME",
	"FILTER01", "FILTER02", "FILTER03", "FRAMEID", "HST",
	"LST", "RADECSYS", "EQUINOX", "DATE-OBS",
	"PROP-ID", "OBS-MOD", "RA", "DEC",
}

// Astrometric keywords of the source frame. They describe detector
// coordinates and are removed outright before the new matrix is written,
// so a reader can never combine stale and synthesized values.
var staleAstroKeys = []string{
	"CRVAL1", "CRVAL2", "CRPIX1", "CRPIX2", "CTYPE1", "CTYPE2",
	"CUNIT1", "CUNIT2", "CDELT1", "CDELT2", "CD1_1", "CD1_2",
	"CD2_1", "CD2_2", "PC001001", "PC001002", "PC002001", "PC002002",
}

// sourceCD reads the 2x2 rotation/scale matrix of the source exposure,
// preferring the preserved original keys written by the stacking stage.
func sourceCD(h *frame.Header) (*mat.Dense, error) {
	vals := make([]float64, 4)
	names := []string{"CD1_1", "CD1_2", "CD2_1", "CD2_2"}
	for i, name := range names {
		key := "O" + name
		if !h.Has(key) {
			key = name
		}
		v, err := h.Float(key)
		if err != nil {
			return nil, fmt.Errorf("reading source CD matrix: %w", err)
		}
		vals[i] = v
	}
	return mat.NewDense(2, 2, vals), nil
}

// WriteAstrometry synthesizes the CD matrix of the reconstructed field
// and writes it into dst along with the transferred source metadata. The
// source matrix is normalized by its determinant to a pure rotation,
// rotated by the calibrated instrument-to-field offset, then rescaled by
// the reconstructed image's X and Y plate scales.
func WriteAstrometry(src, dst *frame.Header, binX int, fieldRotDeg, plateScale, slitletScale float64) error {
	cd, err := sourceCD(src)
	if err != nil {
		return err
	}
	det := mat.Det(cd)
	if det == 0 {
		return fmt.Errorf("source CD matrix is singular")
	}
	// A negative determinant encodes the usual RA-axis flip; the flip
	// survives in the normalized matrix.
	norm := math.Sqrt(math.Abs(det))
	var cdRot mat.Dense
	cdRot.Scale(1/norm, cd)

	theta := fieldRotDeg * math.Pi / 180
	rot := mat.NewDense(2, 2, []float64{
		math.Cos(theta), -math.Sin(theta),
		math.Sin(theta), math.Cos(theta),
	})
	var newRot mat.Dense
	newRot.Mul(rot, &cdRot)

	itnum := 4 / binX
	xscale := plateScale / 3600.0 * float64(binX)
	yscale := -slitletScale / 3600.0 / float64(itnum)

	dst.Transfer(src, transferKeys)
	for _, key := range staleAstroKeys {
		dst.Remove(key)
	}
	dst.Set("CD1_1", newRot.At(0, 0)*xscale, "")
	dst.Set("CD1_2", newRot.At(0, 1)*yscale, "")
	dst.Set("CD2_1", newRot.At(1, 0)*xscale, "")
	dst.Set("CD2_2", newRot.At(1, 1)*yscale, "")
	return nil
}
