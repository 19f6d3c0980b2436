package engine

import (
	"context"
	"runtime"
	"sync"

	"imgpress/internal/logging"
	"imgpress/internal/metrics"
)

// raceCatalog evaluates the full extreme-path strategy catalog with bounded
// concurrency and returns the winner under the configured policy, or nil when
// no strategy met the target. Individual strategy failures are recorded and
// excluded from selection.
func (e *Engine) raceCatalog(ctx context.Context, src Source, base Strategy, target int64) *Outcome {
	catalog := buildCatalog(e.opts, src.HasAlpha(), base)
	if len(catalog) == 0 {
		return nil
	}
	metrics.StrategyRaceCandidates.Observe(float64(len(catalog)))

	bound := runtime.GOMAXPROCS(0)
	if bound > len(catalog) {
		bound = len(catalog)
	}

	jobs := make(chan Strategy, len(catalog))
	results := make(chan Outcome, len(catalog))

	var wg sync.WaitGroup
	for i := 0; i < bound; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- evaluate(ctx, src, s)
			}
		}()
	}

	for _, s := range catalog {
		jobs <- s
	}
	close(jobs)

	wg.Wait()
	close(results)

	outcomes := make([]Outcome, 0, len(catalog))
	failures := 0
	for o := range results {
		if !o.ok() {
			failures++
			continue
		}
		outcomes = append(outcomes, o)
	}
	if failures > 0 {
		logging.Debug("catalog race: %d of %d strategies failed", failures, len(catalog))
	}

	return pickWinner(outcomes, target, e.opts.Strategy)
}
