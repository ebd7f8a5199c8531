package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// DetectionsTotal counts scored submissions by verdict.
	DetectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civiceye",
		Subsystem: "detector",
		Name:      "detections_total",
		Help:      "Total number of reports scored by the fake detector, labeled by verdict.",
	}, []string{"verdict"})

	// DetectionDurationSeconds is the time spent scoring a single report.
	DetectionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "civiceye",
		Subsystem: "detector",
		Name:      "detection_duration_seconds",
		Help:      "Time to score a single report across all detection signals.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"verdict"})

	// FakeScore is the distribution of final weighted scores.
	FakeScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "civiceye",
		Subsystem: "detector",
		Name:      "fake_score",
		Help:      "Distribution of final weighted fake scores.",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})

	// FlaggedTotal counts reports that crossed the fake threshold.
	FlaggedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "civiceye",
		Subsystem: "detector",
		Name:      "flagged_total",
		Help:      "Total number of reports flagged as fake.",
	})

	// SignalsSkippedTotal counts detection signals skipped for missing inputs.
	SignalsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civiceye",
		Subsystem: "detector",
		Name:      "signals_skipped_total",
		Help:      "Total number of detection signals skipped because their inputs were missing, labeled by signal.",
	}, []string{"signal"})

	// FanoutErrorTotal counts failed flagged-report notifications by channel.
	FanoutErrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civiceye",
		Subsystem: "detector",
		Name:      "fanout_error_total",
		Help:      "Total number of flagged-report fan-out failures, labeled by channel.",
	}, []string{"channel"})

	// RedetectionsTotal counts reports re-scored by the background loop.
	RedetectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "civiceye",
		Subsystem: "detector",
		Name:      "redetections_total",
		Help:      "Total number of reports scored by the background re-detection loop.",
	})
)

// Register registers detector metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			DetectionsTotal,
			DetectionDurationSeconds,
			FakeScore,
			FlaggedTotal,
			SignalsSkippedTotal,
			FanoutErrorTotal,
			RedetectionsTotal,
		)
	})
}

// Handler returns the scrape endpoint for the registered metrics.
func Handler() http.Handler { return promhttp.Handler() }
