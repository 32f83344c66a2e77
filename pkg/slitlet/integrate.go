// Package slitlet integrates the stacked frame over the pseudo-slit
// footprints, producing the spectral image with one row per slitlet.
package slitlet

import (
	"errors"
	"fmt"

	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
)

// ErrRegionOutOfBounds is returned when a footprint box extends outside
// the stacked frame. Integration never clips silently: a partial sum
// would corrupt the flux calibration of that slitlet.
var ErrRegionOutOfBounds = errors.New("pseudo-slit region out of frame bounds")

// Integrate sums the stacked frame over each pseudo-slit footprint box.
// Row i of the result belongs to slitlet i; the ordering is a fixed
// contract with the spectral-extraction tools downstream. Every row has
// the width of the footprint boxes, which is uniform by calibration
// convention, and holds the column-wise flux sums of its box.
func Integrate(st *frame.Frame, boxes []geometry.Box) (*frame.Frame, error) {
	binX, err := st.BinX()
	if err != nil {
		return nil, err
	}
	if binX != 1 && binX != 2 && binX != 4 {
		return nil, fmt.Errorf("%w: BIN-FCT1=%d", geometry.ErrUnsupportedBinning, binX)
	}
	if len(boxes) == 0 {
		return nil, errors.New("no pseudo-slit boxes")
	}

	xw := int(boxes[0].W)
	yw := int(boxes[0].H)
	out := frame.New(xw, len(boxes))
	out.Header = st.Header.Clone()

	for j := len(boxes) - 1; j >= 0; j-- {
		box := boxes[j]
		xs := int(box.CX - box.W/2.0)
		ys := int(box.CY - box.H/2.0)
		if xs < 0 || ys < 0 || xs+xw > st.Width || ys+yw > st.Height {
			return nil, fmt.Errorf("%w: slitlet %d box [%d:%d, %d:%d] on %dx%d frame",
				ErrRegionOutOfBounds, j, xs, xs+xw, ys, ys+yw, st.Width, st.Height)
		}
		row := out.Row(j)
		for y := ys; y < ys+yw; y++ {
			src := st.Row(y)[xs : xs+xw]
			for x, v := range src {
				row[x] += v
			}
		}
	}
	return out, nil
}
