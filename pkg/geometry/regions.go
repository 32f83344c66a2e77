// Package geometry supplies the calibrated detector geometry used by the
// reduction stages: overscan/image region tables per binning factor, trim
// ranges, amplifier gains, bad-pixel runs and pseudo-slit footprint boxes.
// All tables are fixed calibration data constructed once and treated as
// read-only; stages receive them as plain values.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedBinning is returned for binning factors with no calibrated
// geometry table. Region geometry is hand-calibrated per binning, so there
// is no generic fallback.
var ErrUnsupportedBinning = errors.New("unsupported binning factor")

// ChannelsPerSide is the number of amplifier channels read out per detector.
const ChannelsPerSide = 4

// Detector identifiers as recorded in the DET-ID header keyword.
const (
	DetRight = 1
	DetLeft  = 2
)

// Physical constants of the instrument.
const (
	// GapArcsec is the angular gap between the two CCDs.
	GapArcsec = 5.0

	// PlateScale is the unbinned pixel scale in arcsec per pixel.
	PlateScale = 0.104

	// SlitletScale is the cross-slit spacing of the stacked slitlets in
	// arcsec, used as the Y plate scale of the reconstructed image.
	SlitletScale = 0.43

	// FieldRotation is the rotation offset of the IFU field with respect
	// to the instrument field, in degrees.
	FieldRotation = -21.38
)

// OverscanRow describes one amplifier channel as six one-based inclusive
// column bounds: left overscan start/end, image start/end, right overscan
// start/end.
type OverscanRow [6]int

// Named accessors for the six bounds of an OverscanRow.
func (r OverscanRow) Over1Start() int { return r[0] }
func (r OverscanRow) Over1End() int   { return r[1] }
func (r OverscanRow) ImageStart() int { return r[2] }
func (r OverscanRow) ImageEnd() int   { return r[3] }
func (r OverscanRow) Over2Start() int { return r[4] }
func (r OverscanRow) Over2End() int   { return r[5] }

// ImageWidth returns the number of effective-pixel columns of the channel.
func (r OverscanRow) ImageWidth() int { return r[3] - r[2] + 1 }

// OverscanTable holds the eight channel rows for one binning factor:
// rows 0-3 describe the left detector, rows 4-7 the right detector.
type OverscanTable [2 * ChannelsPerSide]OverscanRow

// Overscan region definitions in one-based detector coordinates.
// These are measured calibration values; do not derive them.
var overscanTables = map[int]OverscanTable{
	1: {
		// Left detector.
		{2, 8, 9, 520, 521, 536},
		{537, 552, 553, 1064, 1065, 1071},
		{1074, 1080, 1081, 1592, 1593, 1608},
		{1609, 1624, 1625, 2136, 2137, 2142},
		// Right detector.
		{2, 8, 9, 520, 521, 536},
		{537, 552, 553, 1064, 1065, 1071},
		{1074, 1080, 1081, 1592, 1593, 1608},
		{1610, 1625, 1626, 2137, 2138, 2143},
	},
	2: {
		{2, 4, 5, 260, 261, 276},
		{277, 292, 293, 548, 549, 551},
		{553, 556, 557, 812, 813, 828},
		{829, 844, 845, 1100, 1101, 1104},
		//
		{1, 4, 5, 260, 261, 276},
		{277, 292, 293, 548, 549, 551},
		{553, 556, 557, 812, 813, 828},
		{829, 845, 846, 1101, 1102, 1104},
	},
	4: {
		{1, 2, 3, 130, 131, 146},
		{147, 162, 163, 290, 291, 292},
		{293, 294, 295, 422, 423, 438},
		{439, 454, 455, 582, 583, 584},
		//
		{1, 2, 3, 130, 131, 146},
		{147, 162, 163, 290, 291, 292},
		{293, 294, 295, 422, 423, 438},
		{439, 455, 456, 583, 584, 584},
	},
}

// Valid Y ranges after overscan removal, indexed by the Y binning factor.
// Rows outside the range have unusable overscan geometry and are trimmed.
// Values are [start, end) in zero-based row coordinates.
var trimYRanges = map[int][2]int{
	1: {51, 4220},
	2: {26, 2110},
	4: {17, 1406},
}

// Gains are the per-amplifier conversion factors in electrons per ADU,
// ordered from the leftmost amplifier of the left detector to the
// rightmost amplifier of the right detector.
var Gains = [2 * ChannelsPerSide]float64{
	2.054, 1.987, 1.999, 1.918, 2.081, 2.047, 2.111, 2.087,
}

// Overscan returns the overscan table for the given X binning factor.
func Overscan(binX int) (OverscanTable, error) {
	tab, ok := overscanTables[binX]
	if !ok {
		return OverscanTable{}, fmt.Errorf("%w: BIN-FCT1=%d", ErrUnsupportedBinning, binX)
	}
	return tab, nil
}

// TrimY returns the valid [start, end) row range for the given Y binning
// factor, in zero-based coordinates of the untrimmed frame.
func TrimY(binY int) ([2]int, error) {
	r, ok := trimYRanges[binY]
	if !ok {
		return [2]int{}, fmt.Errorf("%w: BIN-FCT2=%d", ErrUnsupportedBinning, binY)
	}
	return r, nil
}

// SideBase returns the first overscan-table row index for a detector.
func SideBase(detID int) int {
	if detID == DetRight {
		return ChannelsPerSide
	}
	return 0
}

// EffectiveWidth returns the total effective-pixel width of one detector
// readout after overscan removal: the sum of the four channel image widths.
func EffectiveWidth(binX, detID int) (int, error) {
	tab, err := Overscan(binX)
	if err != nil {
		return 0, err
	}
	base := SideBase(detID)
	w := 0
	for j := base; j < base+ChannelsPerSide; j++ {
		w += tab[j].ImageWidth()
	}
	return w, nil
}

// GapPixels returns the physical CCD gap in pixels for the given X binning.
func GapPixels(binX int) int {
	return int(math.Round(GapArcsec / PlateScale / float64(binX)))
}

// BadPixelRun describes a dead-column run as one-based inclusive bounds
// x1..x2, y1..y2 on the corrected (overscan-removed) frame.
type BadPixelRun struct {
	X1, X2, Y1, Y2 int
}

// Dead-column runs on the right detector, indexed by the Y binning factor.
// No bad pixels are calibrated for the left detector.
var badPixels = map[int]BadPixelRun{
	1: {397, 397, 2387, 4225},
	2: {397, 397, 1189, 2105},
}

// BadPixels returns the calibrated bad-pixel run for a detector and Y
// binning factor. The second return value is false when there is nothing
// to repair.
func BadPixels(detID, binY int) (BadPixelRun, bool) {
	if detID != DetRight {
		return BadPixelRun{}, false
	}
	run, ok := badPixels[binY]
	return run, ok
}

// Validate checks the internal consistency of an overscan table: the six
// bounds of each channel must be non-decreasing, and the channel spans of
// one detector side must not overlap. Equal adjacent bounds occur where a
// binned overscan collapses to a single column.
func Validate(tab OverscanTable) error {
	for j, row := range tab {
		for k := 1; k < len(row); k++ {
			if row[k] < row[k-1] {
				return fmt.Errorf("channel %d: bounds not increasing at position %d (%d < %d)",
					j, k, row[k], row[k-1])
			}
		}
	}
	for side := 0; side < 2; side++ {
		base := side * ChannelsPerSide
		for j := base + 1; j < base+ChannelsPerSide; j++ {
			if tab[j].Over1Start() <= tab[j-1].Over2End() {
				return fmt.Errorf("channels %d and %d overlap", j-1, j)
			}
		}
	}
	return nil
}
