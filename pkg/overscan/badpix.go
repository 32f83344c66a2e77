package overscan

import (
	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
)

// RepairBadPixels replaces the calibrated dead-column run of the frame's
// detector by the average of the immediate left and right neighbour
// columns. Only the right detector has calibrated bad pixels; for the
// left detector and for binnings without a table entry this is a no-op.
// The run bounds are clamped to the frame, since they are calibrated on
// the untrimmed geometry.
func RepairBadPixels(fr *frame.Frame) (*frame.Frame, error) {
	binY, err := fr.BinY()
	if err != nil {
		return nil, err
	}
	detID, err := fr.DetID()
	if err != nil {
		return nil, err
	}
	run, ok := geometry.BadPixels(detID, binY)
	if !ok {
		return fr, nil
	}

	x1, x2 := run.X1-1, run.X2 // zero-based [x1, x2)
	y1, y2 := run.Y1-1, run.Y2
	if x1 < 1 || x2 > fr.Width-1 {
		// Neighbour columns must exist on both sides.
		return fr, nil
	}
	if y1 < 0 {
		y1 = 0
	}
	if y2 > fr.Height {
		y2 = fr.Height
	}

	out := fr.Clone()
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			out.SetPix(x, y, (fr.At(x-1, y)+fr.At(x+1, y))/2.0)
		}
	}
	return out, nil
}
