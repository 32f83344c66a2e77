// Package overscan trims raw readouts to their effective pixels, converts
// them to electrons, repairs known dead columns and stacks the two
// detector halves into a single frame.
package overscan

import (
	"errors"
	"fmt"

	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
)

// ErrFrameGeometryMismatch is returned when two frames that should be
// combined do not share the same geometry.
var ErrFrameGeometryMismatch = errors.New("frame geometry mismatch")

// Remove strips the overscan regions from a bias-subtracted frame. The
// four channel image regions of the frame's detector side are copied
// left-to-right into a new buffer, each multiplied by its amplifier gain,
// and the rows are trimmed to the binning-dependent valid Y range. The
// output is in electrons; the header records the unit and trim bounds.
func Remove(fr *frame.Frame) (*frame.Frame, error) {
	binX, err := fr.BinX()
	if err != nil {
		return nil, err
	}
	binY, err := fr.BinY()
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
	trim, err := geometry.TrimY(binY)
	if err != nil {
		return nil, err
	}

	width, err := geometry.EffectiveWidth(binX, detID)
	if err != nil {
		return nil, err
	}
	y0, y1 := trim[0], trim[1]
	if y0 > fr.Height {
		y0 = fr.Height
	}
	if y1 > fr.Height {
		y1 = fr.Height
	}
	out := frame.New(width, y1-y0)
	out.Header = fr.Header.Clone()

	base := geometry.SideBase(detID)
	xoff := 0
	for j := base; j < base+geometry.ChannelsPerSide; j++ {
		ch := tab[j]
		gain := geometry.Gains[j]
		d := ch.ImageWidth()
		for y := y0; y < y1; y++ {
			src := fr.Row(y)[ch.ImageStart()-1 : ch.ImageEnd()]
			dst := out.Row(y - y0)[xoff : xoff+d]
			for x, v := range src {
				dst[x] = v * gain
			}
		}
		xoff += d
	}

	out.Header.Set("BUNIT", "electrons", "")
	out.Header.Set("TRM_Y1", y0+1, "Y start of adopted area for trimming")
	out.Header.Set("TRM_Y2", y1, "Y end of adopted area for trimming")
	return out, nil
}

// checkPair verifies that two corrected frames can be stacked.
func checkPair(left, right *frame.Frame) error {
	if left.Height != right.Height {
		return fmt.Errorf("%w: row counts %d vs %d",
			ErrFrameGeometryMismatch, left.Height, right.Height)
	}
	lb, err := left.BinX()
	if err != nil {
		return err
	}
	rb, err := right.BinX()
	if err != nil {
		return err
	}
	if lb != rb {
		return fmt.Errorf("%w: binning %d vs %d", ErrFrameGeometryMismatch, lb, rb)
	}
	return nil
}
