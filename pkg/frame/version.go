package frame

import (
	"errors"
	"fmt"
)

// Version is the pipeline software version written into every product.
// Downstream consistency checks compare it exactly, so bump it whenever
// the reduction semantics change.
const Version = 20190130

// VersionKey is the header keyword carrying the pipeline version.
const VersionKey = "IFU_SOFT"

// ErrAlreadyProcessed marks a frame that carries a pipeline version tag
// and must not be reduced a second time.
var ErrAlreadyProcessed = errors.New("frame already carries a pipeline version tag")

// PutVersion tags a header with the current pipeline version. A header
// that is already tagged is refused: running bias subtraction twice would
// silently double-subtract.
func PutVersion(h *Header) error {
	if v, ok := h.Get(VersionKey); ok {
		return fmt.Errorf("%w: %s=%v", ErrAlreadyProcessed, VersionKey, v)
	}
	h.Set(VersionKey, Version, "IFU pipeline version")
	return nil
}

// CheckVersion reports whether the header carries a version tag matching
// this software exactly. Calibration products with a foreign version are
// unusable because region geometry may have changed between versions.
func CheckVersion(h *Header) bool {
	v, err := h.Int(VersionKey)
	if err != nil {
		return false
	}
	return v == Version
}
