// Package reconstruct expands the integrated spectral image into the
// final 2-D reconstructed field and synthesizes its astrometry.
package reconstruct

import (
	"fmt"

	"ifureduce/pkg/frame"
	"ifureduce/pkg/geometry"
)

// ExpandMode selects how slitlet rows are expanded into image rows.
type ExpandMode int

const (
	// Replicate copies each slitlet row into its output rows verbatim.
	Replicate ExpandMode = iota

	// Smooth linearly blends interior slitlet rows across their output
	// rows. Edge slitlets are always replicated.
	Smooth
)

func (m ExpandMode) String() string {
	if m == Smooth {
		return "smooth"
	}
	return "replicate"
}

// Expand builds the reconstructed image from a spectral image: each
// slitlet row becomes 4/binX output rows so the Y scale matches the X
// scale. The slitlet-to-row mapping is descending: output block 0 holds
// the last slitlet row and block j holds row rows-1-j. This ordering is
// a fixed contract with the downstream spectral tools; changing it
// requires a version bump.
func Expand(slit *frame.Frame, binX int, mode ExpandMode) (*frame.Frame, error) {
	switch binX {
	case 1, 2, 4:
	default:
		return nil, fmt.Errorf("%w: BIN-FCT1=%d", geometry.ErrUnsupportedBinning, binX)
	}
	itnum := 4 / binX
	rows := slit.Height
	out := frame.New(slit.Width, rows*itnum)

	ymax := rows - 1
	for j := 0; j < rows; j++ {
		src := slit.Row(ymax - j)
		interior := mode == Smooth && j >= 1 && j <= rows-2
		for i := 0; i < itnum; i++ {
			dst := out.Row(j*itnum + i)
			if !interior || i == 0 {
				copy(dst, src)
				continue
			}
			next := slit.Row(ymax - j - 1)
			wa := float64(itnum - i)
			wb := float64(i)
			for x := range dst {
				dst[x] = (wa*src[x] + wb*next[x]) / float64(itnum)
			}
		}
	}
	return out, nil
}
