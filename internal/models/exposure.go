package models

// Exposure is one IFU exposure: the two detector readout files that
// together cover the field, plus the reduced output path.
type Exposure struct {
	// ID identifies the exposure in logs and batch results.
	ID string

	// Ch1 is the right-detector readout file (DET-ID 1).
	Ch1 string

	// Ch2 is the left-detector readout file (DET-ID 2).
	Ch2 string

	// Output is the path of the reconstructed image product.
	Output string
}

// BatchResult reports the outcome of reducing one exposure in a batch.
// A failed exposure never aborts the batch; failures are isolated per
// exposure and collected here.
type BatchResult struct {
	Exposure Exposure
	Err      error
}
