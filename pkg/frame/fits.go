package frame

import (
	"fmt"
	"os"

	"github.com/astrogo/fitsio"
)

// Keywords managed by the FITS library itself; they describe the data
// layout and must not be carried around as ordinary metadata.
var reservedKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true,
	"NAXIS2": true, "NAXIS3": true, "EXTEND": true, "END": true,
	"COMMENT": true, "HISTORY": true, "XTENSION": true, "PCOUNT": true,
	"GCOUNT": true,
}

// Read loads the primary HDU of a FITS file into a Frame. 1-D images
// (calibration templates) come back as a Frame of height 1. Pixel data of
// any integer or floating BITPIX wider than 8 bits is converted to
// float64.
func Read(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fh.Close()

	fits, err := fitsio.Open(fh)
	if err != nil {
		return nil, fmt.Errorf("reading FITS %s: %w", path, err)
	}
	defer fits.Close()

	hdu := fits.HDU(0)
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%s: primary HDU is not an image", path)
	}
	hdr := img.Header()

	axes := hdr.Axes()
	width, height := 0, 1
	switch len(axes) {
	case 1:
		width = axes[0]
	case 2:
		width, height = axes[0], axes[1]
	default:
		return nil, fmt.Errorf("%s: unsupported NAXIS=%d", path, len(axes))
	}

	data, err := readPixels(img, hdr.Bitpix(), width*height)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	fr := &Frame{Data: data, Width: width, Height: height, Header: NewHeader()}
	for i := 0; i < len(hdr.Keys()); i++ {
		card := hdr.Card(i)
		if card == nil || reservedKeys[card.Name] {
			continue
		}
		fr.Header.Set(card.Name, card.Value, card.Comment)
	}
	return fr, nil
}

func readPixels(img fitsio.Image, bitpix, n int) ([]float64, error) {
	out := make([]float64, n)
	switch bitpix {
	case 16:
		raw := make([]int16, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 32:
		raw := make([]int32, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 64:
		raw := make([]int64, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -32:
		raw := make([]float32, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -64:
		raw := make([]float64, 0, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		copy(out, raw)
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
	return out, nil
}

// Write stores a frame as a single-precision primary image HDU. An
// existing file is refused unless overwrite is set, so partially reduced
// outputs are never clobbered by accident.
func Write(path string, fr *Frame, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("output file exists: %s", path)
		}
	}
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer fh.Close()

	fits, err := fitsio.Create(fh)
	if err != nil {
		return fmt.Errorf("writing FITS %s: %w", path, err)
	}
	defer fits.Close()

	axes := []int{fr.Width, fr.Height}
	if fr.Height == 1 {
		axes = []int{fr.Width}
	}
	img := fitsio.NewImage(-32, axes)
	defer img.Close()

	for _, card := range fr.Header.Cards() {
		if reservedKeys[card.Name] {
			continue
		}
		if err := img.Header().Append(fitsio.Card{
			Name:    card.Name,
			Value:   card.Value,
			Comment: card.Comment,
		}); err != nil {
			return fmt.Errorf("writing header %s: %w", card.Name, err)
		}
	}

	pix := make([]float32, len(fr.Data))
	for i, v := range fr.Data {
		pix[i] = float32(v)
	}
	if err := img.Write(&pix); err != nil {
		return fmt.Errorf("writing pixels to %s: %w", path, err)
	}
	if err := fits.Write(img); err != nil {
		return fmt.Errorf("writing HDU to %s: %w", path, err)
	}
	return nil
}
