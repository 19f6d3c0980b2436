package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imgpress/internal/logging"
	"imgpress/internal/metrics"
)

// extremeRatio is the budget/original cutoff below which the engine races the
// full strategy catalog instead of binary-searching quality.
const extremeRatio = 0.10

// minImprovement is the fraction a racing candidate must shave off the
// original to win the no-budget auto-format race.
const minImprovement = 0.05

// Engine drives adaptive compression of single units. One Engine is owned by
// one worker and is not safe for concurrent Compress calls; the concurrency
// inside a single call (format races, catalog races) is the engine's own.
type Engine struct {
	opener Opener
	opts   Options
}

// New builds an engine around a codec opener. Options are resolved once here.
func New(opener Opener, opts Options) *Engine {
	return &Engine{opener: opener, opts: opts.Resolve()}
}

// Compress processes one unit and produces its result. Per-strategy failures
// inside races are recorded and skipped; the call fails only when the input
// cannot be classified or every strategy errors.
func (e *Engine) Compress(ctx context.Context, unit Unit) (*Result, error) {
	if err := e.opts.Validate(); err != nil {
		return nil, err
	}

	src, err := e.opener.Open(ctx, unit)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	base := e.baseStrategy()
	originalSize := src.OriginalSize()

	var winner Outcome
	if e.opts.TargetSize == 0 {
		winner, err = e.compressForQuality(ctx, src, base)
	} else {
		winner, err = e.compressToBudget(ctx, src, base, originalSize)
	}
	if err != nil {
		return nil, err
	}

	keptOriginal := false
	if e.opts.TargetSize == 0 && winner.Size >= originalSize {
		// Outside budget mode a result must never grow the input; fall
		// back to the original bytes.
		data, origErr := src.OriginalBytes()
		if origErr != nil {
			return nil, fmt.Errorf("reading original for fallback: %w", origErr)
		}
		winner = Outcome{
			Strategy: Strategy{Format: src.DetectedFormat()},
			Size:     originalSize,
			Data:     data,
		}
		keptOriginal = true
		logging.Debug("%s: no candidate beat the original (%d bytes), keeping it", unit.Name(), originalSize)
	}

	result := &Result{
		InputFile:        inputName(unit),
		OriginalSize:     originalSize,
		CompressedSize:   winner.Size,
		ReductionPercent: reduction(originalSize, winner.Size),
		Width:            src.Width(),
		Height:           src.Height(),
		Format:           winner.Strategy.Format,
		HasAlpha:         src.HasAlpha(),
		KeptOriginal:     keptOriginal,
	}

	switch u := unit.(type) {
	case WholeFile:
		outPath, err := e.persist(u.Path, winner, keptOriginal)
		if err != nil {
			return nil, err
		}
		result.OutputFile = outPath
	case Fragment:
		result.Data = winner.Data
		result.FragmentIndex = u.Index
		result.FragmentTotal = u.Total
		result.FragmentOrigin = u.Origin
	}

	kind := "image"
	if _, isFragment := unit.(Fragment); isFragment {
		kind = "fragment"
	}
	metrics.FilesProcessedTotal.WithLabelValues(kind, "ok").Inc()
	if saved := originalSize - winner.Size; saved > 0 {
		metrics.BytesSavedTotal.Add(float64(saved))
	}
	return result, nil
}

// baseStrategy carries the option-derived parameters every attempt shares.
func (e *Engine) baseStrategy() Strategy {
	effort := 4
	if e.opts.SpeedOptimized {
		effort = 1
	}
	s := Strategy{
		Quality:           e.opts.Quality,
		Effort:            effort,
		SkipOptimizations: e.opts.SkipOptimizations,
	}
	if !e.opts.KeepDimensions {
		s.MaxWidth = e.opts.Width
		s.MaxHeight = e.opts.Height
	}
	return s
}

// compressForQuality handles the no-budget path: a single encode for an
// explicit format, or a concurrent race across viable formats under auto.
func (e *Engine) compressForQuality(ctx context.Context, src Source, base Strategy) (Outcome, error) {
	if e.opts.Format != FormatAuto {
		s := base
		s.Format = e.opts.Format
		outcome := evaluate(ctx, src, s)
		if !outcome.ok() {
			return Outcome{}, fmt.Errorf("%w: %s: %v", ErrEncodeFailure, s.Format, outcome.Err)
		}
		return outcome, nil
	}
	return e.raceFormats(ctx, src, base)
}

// compressToBudget dispatches between the standard search and the extreme
// catalog race based on how aggressive the budget is.
func (e *Engine) compressToBudget(ctx context.Context, src Source, base Strategy, originalSize int64) (Outcome, error) {
	target := e.opts.TargetSize
	ratio := float64(target) / float64(originalSize)

	format := e.opts.Format
	if format == FormatAuto {
		format = defaultBudgetFormat(src.HasAlpha())
	}
	base.Format = format

	if ratio < extremeRatio {
		logging.Debug("budget ratio %.3f below %.2f, racing strategy catalog", ratio, extremeRatio)
		if winner := e.raceCatalog(ctx, src, base, target); winner != nil {
			return *winner, nil
		}
		logging.Debug("no catalog entry met %d bytes, falling back to quality search", target)
	}
	return e.searchToBudget(ctx, src, base, target)
}

// defaultBudgetFormat picks the continuous-knob format used for budget search
// when the caller left format on auto.
func defaultBudgetFormat(hasAlpha bool) Format {
	if hasAlpha {
		return FormatWebP
	}
	return FormatJPEG
}

// evaluate runs one strategy and captures its outcome, timing included.
func evaluate(ctx context.Context, src Source, s Strategy) Outcome {
	start := time.Now()
	data, err := src.Encode(ctx, s)
	outcome := Outcome{
		Strategy: s,
		Duration: time.Since(start),
		Data:     data,
		Err:      err,
	}
	if err == nil {
		outcome.Size = int64(len(data))
		metrics.EncodeDuration.WithLabelValues(string(s.Format)).Observe(outcome.Duration.Seconds())
	}
	return outcome
}

// persist writes the winning bytes next to (or in place of) the input using a
// temp file and rename. The output extension follows the chosen format; when
// the original was kept the input's extension survives.
func (e *Engine) persist(inputPath string, winner Outcome, keptOriginal bool) (string, error) {
	dir := e.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	ext := formatExt(winner.Strategy.Format)
	if keptOriginal || ext == "" {
		ext = filepath.Ext(inputPath)
	}
	outPath := filepath.Join(dir, baseName+ext)

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, winner.Data, 0644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename into place: %w", err)
	}
	return outPath, nil
}

func formatExt(f Format) string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatWebP:
		return ".webp"
	case FormatAVIF:
		return ".avif"
	case FormatPNG:
		return ".png"
	default:
		return ""
	}
}

func inputName(unit Unit) string {
	switch u := unit.(type) {
	case WholeFile:
		return u.Path
	case Fragment:
		return u.Origin
	default:
		return unit.Name()
	}
}
