package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Batch metrics
var (
	FilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgpress_files_processed_total",
			Help: "Total number of files processed",
		},
		[]string{"kind", "status"}, // kind: image/video/fragment, status: ok/error/skipped
	)

	BytesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgpress_bytes_saved_total",
			Help: "Total bytes removed by compression",
		},
	)

	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgpress_workers_active",
			Help: "Number of worker threads currently running",
		},
	)
)

// Engine metrics
var (
	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgpress_encode_duration_seconds",
			Help:    "Duration of individual encode operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)

	StrategyRaceCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgpress_strategy_race_candidates",
			Help:    "Number of candidate strategies evaluated per race",
			Buckets: []float64{2, 4, 8, 16, 32, 64, 128},
		},
	)

	SearchIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgpress_search_iterations",
			Help:    "Binary search iterations used to hit a byte budget",
			Buckets: []float64{1, 2, 4, 6, 8, 10, 12, 15},
		},
	)
)
