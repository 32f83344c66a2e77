package overscan

import (
	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
)

// Stale world-coordinate keywords of the raw readout. They describe the
// pre-trim detector geometry and would mislead anything that reads the
// stacked frame, so they are removed rather than left to go stale.
var staleWCSKeys = []string{
	"CUNIT1", "CUNIT2", "CRVAL1", "CRVAL2", "CRPIX1", "CRPIX2",
	"CDELT1", "CDELT2", "CTYPE1", "CTYPE2", "CD1_2", "CD2_1",
	"PC001001", "PC001002", "PC002001", "PC002002",
}

// StackPair joins the two corrected detector readouts into one frame with
// the physical CCD gap inserted between them as a zero-filled block. The
// header is taken from the right readout; the gap column bounds are
// recorded and the stale raw-frame WCS keywords are rewritten.
func StackPair(left, right *frame.Frame) (*frame.Frame, error) {
	if err := checkPair(left, right); err != nil {
		return nil, err
	}
	binX, err := right.BinX()
	if err != nil {
		return nil, err
	}

	gap := geometry.GapPixels(binX)
	out := frame.New(left.Width+gap+right.Width, right.Height)
	out.Header = right.Header.Clone()
	for y := 0; y < out.Height; y++ {
		dst := out.Row(y)
		copy(dst[:left.Width], left.Row(y))
		copy(dst[left.Width+gap:], right.Row(y))
	}

	out.Header.Set("GAP_X1", left.Width+1, "Gap start X")
	out.Header.Set("GAP_X2", left.Width+gap, "Gap end X")
	rewriteGeometryKeys(out.Header)
	return out, nil
}

// rewriteGeometryKeys preserves the original pointing under renamed keys,
// resets the CD diagonal for the downstream wavelength reidentification
// step, and drops the stale WCS keywords.
func rewriteGeometryKeys(h *frame.Header) {
	if v, ok := h.Get("CRVAL1"); ok {
		h.Set("OCRVAL1", v, "Original CRVAL1")
	}
	if v, ok := h.Get("CRVAL2"); ok {
		h.Set("OCRVAL2", v, "Original CRVAL2")
	}
	for _, key := range []string{"CD1_1", "CD1_2", "CD2_1", "CD2_2"} {
		if v, ok := h.Get(key); ok {
			h.Set("O"+key, v, "Original "+key)
		}
	}
	h.Set("CD1_1", 1.0, "")
	h.Set("CD2_2", 1.0, "")
	for _, key := range staleWCSKeys {
		h.Remove(key)
	}
}
