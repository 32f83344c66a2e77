package bias

import (
	"fmt"

	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
)

// Rows at the frame edges have no symmetric [i-2, i+2] overscan window;
// they stay zero and are discarded later by the trim stage.
const edgeRows = 2

// rangeMean averages a slice of a row-shaped array over the one-based
// inclusive column bounds [c1, c2].
func rangeMean(data []float64, c1, c2 int) float64 {
	sum := 0.0
	for x := c1 - 1; x < c2; x++ {
		sum += data[x]
	}
	return sum / float64(c2-c1+1)
}

// windowMean averages the frame over rows [y0, y1) and the one-based
// inclusive column bounds [c1, c2].
func windowMean(fr *frame.Frame, y0, y1, c1, c2 int) float64 {
	sum := 0.0
	for y := y0; y < y1; y++ {
		for x := c1 - 1; x < c2; x++ {
			sum += fr.At(x, y)
		}
	}
	return sum / float64((y1-y0)*(c2-c1+1))
}

// templateLevel is the reference overscan level of one channel: the sum
// of the template means over the channel's two overscan ranges.
func templateLevel(tmpl []float64, ch geometry.OverscanRow) float64 {
	return rangeMean(tmpl, ch.Over1Start(), ch.Over1End()) +
		rangeMean(tmpl, ch.Over2Start(), ch.Over2End())
}

// frameLevel is the local overscan level of one channel around data row
// i, averaged over the rows [i-2, i+2].
func frameLevel(fr *frame.Frame, ch geometry.OverscanRow, i int) float64 {
	return windowMean(fr, i-edgeRows, i+edgeRows+1, ch.Over1Start(), ch.Over1End()) +
		windowMean(fr, i-edgeRows, i+edgeRows+1, ch.Over2Start(), ch.Over2End())
}

// ScaleFactor returns the per-row bias scale for one channel: the ratio
// of the frame's local overscan level to the template's reference level.
func ScaleFactor(fr *frame.Frame, tmpl []float64, ch geometry.OverscanRow, row int) float64 {
	return frameLevel(fr, ch, row) / templateLevel(tmpl, ch)
}

// Subtract removes the scaled bias template from a raw frame. For every
// data row and every channel of the frame's detector side, the template
// is scaled by the row's overscan ratio and subtracted across the full
// channel span (both overscans plus the image region). The result keeps
// the input header, minus the integer-only keywords that no longer apply
// to floating-point data.
func Subtract(fr *frame.Frame, tmpl []float64) (*frame.Frame, error) {
	if len(tmpl) != fr.Width {
		return nil, fmt.Errorf("%w: %d samples vs width %d",
			ErrDimensionMismatch, len(tmpl), fr.Width)
	}
	binX, err := fr.BinX()
	if err != nil {
		return nil, err
	}
	detID, err := fr.DetID()
	if err != nil {
		return nil, err
	}
	tab, err := geometry.Overscan(binX)
	if err != nil {
		return nil, err
	}

	out := frame.New(fr.Width, fr.Height)
	out.Header = fr.Header.Clone()
	out.Header.Remove("BLANK")
	out.Header.Remove("BSCALE")
	out.Header.Remove("BZERO")

	base := geometry.SideBase(detID)
	for i := edgeRows; i < fr.Height-edgeRows-1; i++ {
		for j := base; j < base+geometry.ChannelsPerSide; j++ {
			ch := tab[j]
			scale := ScaleFactor(fr, tmpl, ch, i)
			for x := ch.Over1Start() - 1; x < ch.Over2End(); x++ {
				out.SetPix(x, i, fr.At(x, i)-tmpl[x]*scale)
			}
		}
	}
	return out, nil
}
