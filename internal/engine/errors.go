package engine

import "errors"

var (
	// ErrUnsupportedFormat indicates the input could not be classified as a
	// compressible media type. Recorded per item; never batch-fatal.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEncodeFailure indicates every attempted strategy failed for one
	// input. Recorded per item; never batch-fatal.
	ErrEncodeFailure = errors.New("all encode strategies failed")

	// ErrInvalidTargetSize indicates a malformed or unreachable byte budget.
	// Raised before any work starts.
	ErrInvalidTargetSize = errors.New("invalid target size")
)
