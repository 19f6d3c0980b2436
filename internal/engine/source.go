package engine

import "context"

// Source is one decoded input held open for repeated encoding. Implementations
// must support independent concurrent Encode calls against the same decoded
// pixels.
type Source interface {
	Width() int
	Height() int
	HasAlpha() bool
	// DetectedFormat is the classified input format, or "" when the payload
	// decoded but matches none of the output formats.
	DetectedFormat() Format
	// OriginalSize is the input payload size in bytes.
	OriginalSize() int64
	// OriginalBytes returns the untouched input payload, used when no
	// candidate beats the original.
	OriginalBytes() ([]byte, error)
	// Encode renders the source with the given parameters. Resizing
	// requested by the strategy is applied before encoding and never
	// upscales.
	Encode(ctx context.Context, s Strategy) ([]byte, error)
	Close()
}

// Opener decodes a Unit into a Source. Implementations return
// ErrUnsupportedFormat (wrapped or bare) when the unit cannot be classified.
type Opener interface {
	Open(ctx context.Context, unit Unit) (Source, error)
}
