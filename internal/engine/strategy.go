package engine

import "time"

// Strategy is a pure parameter tuple for one encode attempt. Strategies carry
// no state and may be evaluated concurrently against the same source.
type Strategy struct {
	Format  Format
	Quality int
	// Effort is the codec-specific effort/speed knob, 0-9 (higher = slower,
	// smaller output). For PNG it is the zlib compression level.
	Effort int
	// ResizeFactor in (0,1] scales both dimensions before encoding;
	// 0 means no factor.
	ResizeFactor float64
	// Palette quantizes PNG output to Colors colors.
	Palette bool
	Colors  int
	// MaxWidth and MaxHeight bound the output dimensions; aspect is
	// preserved and the source is never upscaled. 0 means unbounded.
	MaxWidth  int
	MaxHeight int
	// SkipOptimizations disables extra lossless-stage work where the codec
	// supports it.
	SkipOptimizations bool
}

// Outcome is the evaluated result of one Strategy.
type Outcome struct {
	Strategy Strategy
	Size     int64
	Duration time.Duration
	Data     []byte
	Err      error
}

// ok reports whether the strategy produced usable bytes.
func (o Outcome) ok() bool { return o.Err == nil && len(o.Data) > 0 }

// qualityPreset is a quality/effort pair used to build extreme-path catalogs.
type qualityPreset struct {
	quality int
	effort  int
}

// extremePresets lists the per-format quality ladders raced on the extreme
// path, most conservative first.
var extremePresets = map[Format][]qualityPreset{
	FormatJPEG: {{60, 0}, {45, 0}, {30, 0}, {15, 0}, {8, 0}},
	FormatWebP: {{50, 4}, {35, 4}, {20, 6}, {10, 6}, {5, 6}},
	FormatAVIF: {{45, 6}, {30, 6}, {18, 8}, {10, 8}},
	FormatPNG:  {{100, 9}, {80, 9}, {60, 9}, {40, 9}},
}

// extremeResizeFactors is the descending pixel-count ladder applied on top of
// the quality presets when resizing is allowed.
var extremeResizeFactors = []float64{0.8, 0.65, 0.5, 0.35, 0.25, 0.15, 0.1}

// pngColorLadder is the descending palette ladder used both for PNG budget
// search and for palette strategies in extreme catalogs.
var pngColorLadder = []int{256, 128, 64, 32, 16}

// candidateFormats returns the viable output formats for a source, in
// evaluation order. JPEG is excluded for sources with an alpha channel; PNG
// is only a candidate when alpha must survive or near-lossless quality was
// requested.
func candidateFormats(hasAlpha bool, quality int) []Format {
	candidates := []Format{FormatAVIF, FormatWebP}
	if !hasAlpha {
		candidates = append(candidates, FormatJPEG)
	}
	if hasAlpha || quality >= 90 {
		candidates = append(candidates, FormatPNG)
	}
	return candidates
}

// buildCatalog generates the extreme-path strategy catalog: every viable
// format's preset ladder at full resolution, then the same ladder repeated at
// each descending resize factor unless resizing is disabled.
func buildCatalog(opts Options, hasAlpha bool, base Strategy) []Strategy {
	formats := candidateFormats(hasAlpha, opts.Quality)
	if opts.Format != FormatAuto {
		formats = []Format{opts.Format}
	}

	factors := []float64{0}
	if !opts.KeepDimensions {
		factors = append(factors, extremeResizeFactors...)
	}

	var catalog []Strategy
	for _, factor := range factors {
		for _, format := range formats {
			for _, preset := range extremePresets[format] {
				s := base
				s.Format = format
				s.Quality = preset.quality
				s.Effort = preset.effort
				s.ResizeFactor = factor
				if format == FormatPNG {
					s.Palette = true
					s.Colors = pngColorLadder[0]
				}
				catalog = append(catalog, s)
			}
		}
	}
	return catalog
}

// pickWinner selects among successful under-budget outcomes per policy.
// Returns nil when no outcome qualifies.
func pickWinner(outcomes []Outcome, target int64, policy Policy) *Outcome {
	var fits []Outcome
	for _, o := range outcomes {
		if o.ok() && o.Size <= target {
			fits = append(fits, o)
		}
	}
	if len(fits) == 0 {
		return nil
	}

	smallest, largest, fastest := &fits[0], &fits[0], &fits[0]
	for i := range fits {
		o := &fits[i]
		if o.Size < smallest.Size {
			smallest = o
		}
		if o.Size > largest.Size {
			largest = o
		}
		if o.Duration < fastest.Duration {
			fastest = o
		}
	}

	switch policy {
	case PolicySize:
		return smallest
	case PolicySpeed:
		return fastest
	case PolicyQuality:
		return largest
	default:
		// Auto: richest result under budget, unless it sails so close to
		// the ceiling that the smallest result is meaningfully safer.
		if float64(largest.Size) > float64(target)*0.95 && smallest.Size < largest.Size {
			return smallest
		}
		return largest
	}
}
