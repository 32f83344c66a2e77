package pipeline

import (
	"fmt"

	"ifureduce/pkg/frame"
)

// Placement keywords for incremental mosaic display. MOSX/MOSY give the
// zero-based position of a reduced frame inside the destination buffer.
const (
	keyMosaicX     = "MOSX"
	keyMosaicY     = "MOSY"
	keyMosaicCount = "NMOSAIC"
)

// IngestMosaic accumulates reduced frames into dest in place, so a
// display layer can hold one long-lived buffer and refresh it as
// exposures finish. Each frame is placed at its MOSX/MOSY offsets
// (origin if absent) and clipped to the destination bounds; overlapping
// pixels are overwritten, newest frame last. NMOSAIC on dest counts the
// frames ingested so far.
func (p *Pipeline) IngestMosaic(frames []*frame.Frame, dest *frame.Frame) error {
	if dest == nil || len(dest.Data) == 0 {
		return fmt.Errorf("mosaic destination is empty")
	}

	count := 0
	if v, err := dest.Header.Int(keyMosaicCount); err == nil {
		count = v
	}

	for _, fr := range frames {
		xoff := 0
		yoff := 0
		if v, err := fr.Header.Int(keyMosaicX); err == nil {
			xoff = v
		}
		if v, err := fr.Header.Int(keyMosaicY); err == nil {
			yoff = v
		}

		placed := false
		for y := 0; y < fr.Height; y++ {
			dy := y + yoff
			if dy < 0 || dy >= dest.Height {
				continue
			}
			for x := 0; x < fr.Width; x++ {
				dx := x + xoff
				if dx < 0 || dx >= dest.Width {
					continue
				}
				dest.Data[dy*dest.Width+dx] = fr.At(x, y)
				placed = true
			}
		}
		if !placed {
			return fmt.Errorf("frame at offset (%d,%d) lies outside the %dx%d mosaic",
				xoff, yoff, dest.Width, dest.Height)
		}
		count++
	}

	dest.Header.Set(keyMosaicCount, count, "Number of frames ingested into mosaic")
	return nil
}
