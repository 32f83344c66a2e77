package geometry

// SlitletCount is the number of spatial channels of the image slicer.
// The row count of the integrated spectral image is always SlitletCount,
// independent of binning.
const SlitletCount = 24

// ReferenceSlitlet is the designated reference channel: slitlet index 0 is
// the sky channel, and indices increase across the field. Downstream
// spectral-extraction tools depend on this ordering; treat it as a
// versioned external contract.
const ReferenceSlitlet = 0

// Box is a pseudo-slit footprint on the stacked frame, described the way
// region files describe it: a center point plus full width and height, in
// one-based pixel coordinates.
type Box struct {
	CX, CY float64
	W, H   float64
}

// Unbinned footprint geometry of the pseudo-slits on the stacked frame.
// The calibrated boxes share one width and height; only the Y center
// moves from slitlet to slitlet.
const (
	slitBoxCX     = 2072.0
	slitBoxW      = 138.0
	slitBoxH      = 160.0
	slitBoxCY0    = 92.0
	slitBoxPitchY = 173.5
)

// Slitlets returns the pseudo-slit footprint boxes for the given X binning
// factor, ordered by slitlet index. The built-in table is the calibrated
// unbinned geometry scaled by the binning factor; a region file loaded
// with ParseRegionFile takes precedence when provided.
func Slitlets(binX int) ([]Box, error) {
	switch binX {
	case 1, 2, 4:
	default:
		return nil, ErrUnsupportedBinning
	}
	b := float64(binX)
	boxes := make([]Box, SlitletCount)
	for i := range boxes {
		boxes[i] = Box{
			CX: slitBoxCX / b,
			CY: (slitBoxCY0 + float64(i)*slitBoxPitchY) / b,
			W:  slitBoxW / b,
			H:  slitBoxH / b,
		}
	}
	return boxes, nil
}
