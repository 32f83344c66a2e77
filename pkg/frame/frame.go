// Package frame models one detector readout or pipeline product: a 2-D
// float pixel array plus its FITS header. Frames are treated as immutable
// between stages; each stage builds a new Frame rather than editing its
// input in place.
package frame

// Standard keyword names used throughout the pipeline.
const (
	KeyBinX  = "BIN-FCT1"
	KeyBinY  = "BIN-FCT2"
	KeyDetID = "DET-ID"
)

// Frame is a 2-D pixel array in row-major order with its header.
type Frame struct {
	Data   []float64
	Width  int
	Height int
	Header *Header
}

// New returns a zero-filled frame of the given size with an empty header.
func New(width, height int) *Frame {
	return &Frame{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
		Header: NewHeader(),
	}
}

// At returns the pixel at zero-based column x, row y.
func (f *Frame) At(x, y int) float64 {
	return f.Data[y*f.Width+x]
}

// SetPix stores the pixel at zero-based column x, row y.
func (f *Frame) SetPix(x, y int, v float64) {
	f.Data[y*f.Width+x] = v
}

// Row returns row y as a shared sub-slice.
func (f *Frame) Row(y int) []float64 {
	return f.Data[y*f.Width : (y+1)*f.Width]
}

// Clone returns a deep copy of the frame and its header.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Data:   make([]float64, len(f.Data)),
		Width:  f.Width,
		Height: f.Height,
		Header: f.Header.Clone(),
	}
	copy(out.Data, f.Data)
	return out
}

// Mean returns the mean pixel value, or 0 for an empty frame.
func (f *Frame) Mean() float64 {
	if len(f.Data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range f.Data {
		sum += v
	}
	return sum / float64(len(f.Data))
}

// BinX returns the X binning factor from the header.
func (f *Frame) BinX() (int, error) { return f.Header.Int(KeyBinX) }

// BinY returns the Y binning factor from the header.
func (f *Frame) BinY() (int, error) { return f.Header.Int(KeyBinY) }

// DetID returns the detector identifier from the header.
func (f *Frame) DetID() (int, error) { return f.Header.Int(KeyDetID) }
