package engine

import (
	"context"
	"fmt"

	"imgpress/internal/logging"
	"imgpress/internal/metrics"
)

const (
	searchMinQuality = 5
	searchMaxQuality = 95
	// searchMaxIterations bounds the binary search even when the encoder's
	// size response is not strictly monotone in quality.
	searchMaxIterations = 15
)

// searchToBudget finds encode parameters whose output fits target. For
// formats with a continuous quality knob it binary-searches quality; PNG
// instead walks a fixed descending palette ladder.
func (e *Engine) searchToBudget(ctx context.Context, src Source, base Strategy, target int64) (Outcome, error) {
	if base.Format == FormatPNG {
		return e.pngLadder(ctx, src, base, target)
	}

	lo, hi := searchMinQuality, searchMaxQuality
	iterations := 0
	var best *Outcome
	var lastErr error

	for lo <= hi && iterations < searchMaxIterations {
		iterations++
		mid := (lo + hi) / 2
		s := base
		s.Quality = mid

		outcome := evaluate(ctx, src, s)
		if !outcome.ok() {
			// A failed probe tells us nothing about size; treat it as
			// over budget and keep narrowing downward.
			lastErr = outcome.Err
			hi = mid - 1
			continue
		}

		logging.Debug("budget search q=%d -> %d bytes (target %d)", mid, outcome.Size, target)
		if outcome.Size <= target {
			best = &outcome
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	metrics.SearchIterations.Observe(float64(iterations))

	if best != nil {
		return *best, nil
	}

	// Nothing fit: hand back the floor-quality encode regardless of size so
	// the caller still gets the closest achievable result.
	s := base
	s.Quality = searchMinQuality
	outcome := evaluate(ctx, src, s)
	if !outcome.ok() {
		if lastErr == nil {
			lastErr = outcome.Err
		}
		return Outcome{}, fmt.Errorf("%w: %s: %v", ErrEncodeFailure, base.Format, lastErr)
	}
	return outcome, nil
}

// pngLadder tries descending palette configurations and returns the first
// that fits the budget, or the most aggressive one tried.
func (e *Engine) pngLadder(ctx context.Context, src Source, base Strategy, target int64) (Outcome, error) {
	configs := []Strategy{base}
	for _, colors := range pngColorLadder {
		s := base
		s.Palette = true
		s.Colors = colors
		s.Effort = 9
		configs = append(configs, s)
	}

	var last *Outcome
	var lastErr error
	for _, s := range configs {
		outcome := evaluate(ctx, src, s)
		if !outcome.ok() {
			lastErr = outcome.Err
			continue
		}
		if outcome.Size <= target {
			return outcome, nil
		}
		last = &outcome
	}

	if last != nil {
		return *last, nil
	}
	return Outcome{}, fmt.Errorf("%w: png: %v", ErrEncodeFailure, lastErr)
}
