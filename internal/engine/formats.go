package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"imgpress/internal/logging"
	"imgpress/internal/metrics"
)

// raceFormats evaluates every viable format concurrently at the requested
// quality and picks the smallest result that improves on the original by at
// least minImprovement. When no candidate clears that bar, the first viable
// candidate wins. A candidate erroring is excluded, not fatal, unless all of
// them fail.
func (e *Engine) raceFormats(ctx context.Context, src Source, base Strategy) (Outcome, error) {
	formats := candidateFormats(src.HasAlpha(), e.opts.Quality)
	metrics.StrategyRaceCandidates.Observe(float64(len(formats)))

	outcomes := make([]Outcome, len(formats))
	var wg sync.WaitGroup
	for i, format := range formats {
		s := base
		s.Format = format
		wg.Add(1)
		go func(i int, s Strategy) {
			defer wg.Done()
			outcomes[i] = evaluate(ctx, src, s)
		}(i, s)
	}
	wg.Wait()

	ceiling := int64(float64(src.OriginalSize()) * (1 - minImprovement))

	var best *Outcome
	var first *Outcome
	var errs []error
	for i := range outcomes {
		o := &outcomes[i]
		if !o.ok() {
			logging.Debug("format %s failed: %v", o.Strategy.Format, o.Err)
			errs = append(errs, fmt.Errorf("%s: %w", o.Strategy.Format, o.Err))
			continue
		}
		if first == nil {
			first = o
		}
		if o.Size <= ceiling && (best == nil || o.Size < best.Size) {
			best = o
		}
	}

	if best != nil {
		return *best, nil
	}
	if first != nil {
		return *first, nil
	}
	return Outcome{}, fmt.Errorf("%w: %w", ErrEncodeFailure, errors.Join(errs...))
}
