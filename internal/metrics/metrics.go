// Package metrics exposes Prometheus counters for provider calls and
// refresh runs. The CLI writes them in textfile collector format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider call outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Refresh statuses.
const (
	StatusUpdated   = "updated"
	StatusUnchanged = "unchanged"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmeta_provider_requests_total",
		Help: "Provider lookups by outcome.",
	}, []string{"provider", "outcome"})

	ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookmeta_provider_request_duration_seconds",
		Help:    "Duration of provider lookups in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	BooksRefreshed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookmeta_books_refreshed_total",
		Help: "Books handled by refresh runs by status.",
	}, []string{"status"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bookmeta_refresh_duration_seconds",
		Help:    "Duration of whole refresh runs in seconds.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)

// RecordProviderCall counts one provider lookup and its duration.
func RecordProviderCall(provider, outcome string, start time.Time) {
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// RecordBook counts one book handled by a refresh.
func RecordBook(status string) {
	BooksRefreshed.WithLabelValues(status).Inc()
}

// RecordRefreshDuration records the time taken by a refresh run.
func RecordRefreshDuration(start time.Time) {
	RefreshDuration.Observe(time.Since(start).Seconds())
}

// WriteTextfile writes every registered metric to path for the node
// exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
