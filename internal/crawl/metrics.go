package crawl

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal  *prometheus.CounterVec
	backoffSleepSeconds *prometheus.HistogramVec
	windowsTotal        *prometheus.CounterVec
	rowsMergedTotal     prometheus.Counter
	regionsCompleted    prometheus.Counter

	metricsOnce sync.Once
)

// InitMetrics registers the crawl collectors. Safe to call multiple times.
func InitMetrics() {
	metricsOnce.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathermart_fetch_attempts_total",
				Help: "Total archive fetch attempts, labeled by classified outcome.",
			},
			[]string{"outcome"},
		)
		backoffSleepSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weathermart_backoff_sleep_seconds",
				Help:    "Histogram of retry backoff waits, labeled by reason.",
				Buckets: []float64{5, 10, 30, 60, 120, 240, 480},
			},
			[]string{"reason"},
		)
		windowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weathermart_windows_total",
				Help: "Total fetch windows processed, labeled by terminal state.",
			},
			[]string{"result"},
		)
		rowsMergedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "weathermart_rows_merged_total",
				Help: "Net rows added to the consolidated dataset.",
			},
		)
		regionsCompleted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "weathermart_regions_completed_total",
				Help: "Regions fully caught up during this process lifetime.",
			},
		)
	})
}

// ObserveFetch counts one classified fetch attempt.
func ObserveFetch(outcome string) {
	if fetchAttemptsTotal != nil {
		fetchAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveBackoff records one backoff wait.
func ObserveBackoff(reason string, seconds float64) {
	if backoffSleepSeconds != nil {
		backoffSleepSeconds.WithLabelValues(reason).Observe(seconds)
	}
}

// ObserveWindow counts one window's terminal state.
func ObserveWindow(result string) {
	if windowsTotal != nil {
		windowsTotal.WithLabelValues(result).Inc()
	}
}

// AddRowsMerged accumulates net merged rows.
func AddRowsMerged(n int) {
	if rowsMergedTotal != nil && n > 0 {
		rowsMergedTotal.Add(float64(n))
	}
}

// IncRegionCompleted counts a fully caught-up region.
func IncRegionCompleted() {
	if regionsCompleted != nil {
		regionsCompleted.Inc()
	}
}
