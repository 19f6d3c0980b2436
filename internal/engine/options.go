package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Format identifies an output image format.
type Format string

const (
	// FormatAuto lets the engine race candidate formats and pick a winner.
	FormatAuto Format = "auto"
	// FormatJPEG is baseline JPEG.
	FormatJPEG Format = "jpeg"
	// FormatWebP is lossy WebP.
	FormatWebP Format = "webp"
	// FormatAVIF is AV1 image format.
	FormatAVIF Format = "avif"
	// FormatPNG is PNG (palette-quantized when chasing a budget).
	FormatPNG Format = "png"
)

// Policy selects the winner among strategies that meet a byte budget.
type Policy string

const (
	// PolicyAuto balances fidelity against budget headroom.
	PolicyAuto Policy = "auto"
	// PolicySize picks the globally smallest output.
	PolicySize Policy = "size"
	// PolicyQuality picks the largest output still under budget.
	PolicyQuality Policy = "quality"
	// PolicySpeed picks the fastest successful encode.
	PolicySpeed Policy = "speed"
)

// Options configures one compression invocation. The zero value is usable
// after Resolve.
type Options struct {
	// Quality is the encode quality in [1,100]. Defaults to 80.
	Quality int
	// Format is the requested output format. Defaults to FormatAuto.
	Format Format
	// TargetSize is the byte budget for the output; 0 means none.
	TargetSize int64
	// Strategy selects the winner policy on the extreme path.
	Strategy Policy
	// Width and Height bound the output dimensions (aspect preserved,
	// never upscaled). 0 means unbounded.
	Width  int
	Height int
	// KeepDimensions disables all resizing, including the extreme path's
	// resize-factor strategies.
	KeepDimensions bool
	// SpeedOptimized biases encoder effort toward speed.
	SpeedOptimized bool
	// Ultrafast implies SpeedOptimized and widens the worker pool.
	Ultrafast bool
	// SkipOptimizations disables extra lossless-stage optimization
	// (JPEG coding optimization, PNG filtering).
	SkipOptimizations bool
	// Threads overrides the derived worker count when non-zero.
	Threads int
	// ForceThreads routes even small batches through the worker pool and
	// enables fragmentation of oversized images.
	ForceThreads bool
	// Parallel caps in-flight files on the bounded in-process path.
	// Defaults to 8.
	Parallel int
	// OutputDir receives compressed files; empty means alongside the input.
	OutputDir string
}

// Resolve fills defaults and normalizes fields. Resolving an already resolved
// Options is a no-op.
func (o Options) Resolve() Options {
	if o.Quality <= 0 {
		o.Quality = 80
	}
	if o.Quality > 100 {
		o.Quality = 100
	}
	if o.Format == "" {
		o.Format = FormatAuto
	}
	if o.Strategy == "" {
		o.Strategy = PolicyAuto
	}
	if o.Parallel <= 0 {
		o.Parallel = 8
	}
	if o.Ultrafast {
		o.SpeedOptimized = true
	}
	if o.Width < 0 {
		o.Width = 0
	}
	if o.Height < 0 {
		o.Height = 0
	}
	return o
}

// Validate rejects option combinations that cannot produce any output.
// It is called before any work is dispatched.
func (o Options) Validate() error {
	if o.TargetSize < 0 {
		return fmt.Errorf("%w: negative budget %d", ErrInvalidTargetSize, o.TargetSize)
	}
	// No image payload fits under this floor.
	if o.TargetSize > 0 && o.TargetSize < 64 {
		return fmt.Errorf("%w: %d bytes is unreachable", ErrInvalidTargetSize, o.TargetSize)
	}
	switch o.Format {
	case FormatAuto, FormatJPEG, FormatWebP, FormatAVIF, FormatPNG:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrUnsupportedFormat, o.Format)
	}
	return nil
}

// ParseByteSize parses human byte-size strings like "50KB", "1.5MB" or "820".
// Units are powers of 1024.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty size", ErrInvalidTargetSize)
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1 << 30
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1 << 20
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1 << 10
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTargetSize, s)
	}
	return int64(value * float64(multiplier)), nil
}
