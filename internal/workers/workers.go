package workers

import (
	"math"
	"os"
	"runtime"
	"strconv"
)

const (
	// MinWorkers is the lower clamp for any worker pool.
	MinWorkers = 2
	// MaxWorkers is the upper clamp for any worker pool.
	MaxWorkers = 32
)

// Count returns the worker count for a batch.
//
// The base count is ceil(cores * 1.5), where cores respects container CPU
// limits via GOMAXPROCS (Go 1.19+). Under ultrafast the multiplier is 2.0.
// An explicit non-zero count overrides the CPU-derived base (and is itself
// scaled by 1.5 under ultrafast). The result is always clamped to
// [MinWorkers, MaxWorkers].
//
// Can be overridden with the IMGPRESS_WORKERS environment variable.
func Count(explicit int, ultrafast bool) int {
	if override := os.Getenv("IMGPRESS_WORKERS"); override != "" {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			return clamp(n)
		}
	}

	if explicit > 0 {
		n := explicit
		if ultrafast {
			n = int(math.Ceil(float64(explicit) * 1.5))
		}
		return clamp(n)
	}

	cores := runtime.GOMAXPROCS(0)
	if ultrafast {
		return clamp(cores * 2)
	}
	return clamp(int(math.Ceil(float64(cores) * 1.5)))
}

// Scaled returns cores scaled by multiplier, capped at limit (0 = no limit).
// Used for intra-process concurrency bounds rather than pool sizing.
func Scaled(multiplier float64, limit int) int {
	n := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

func clamp(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
