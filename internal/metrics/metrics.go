// Package metrics exposes Prometheus collectors for the catalog ETL service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	etlRecordsReadTotal      *prometheus.CounterVec
	etlRecordsLoadedTotal    *prometheus.CounterVec
	etlRecordsSkippedTotal   *prometheus.CounterVec
	etlRunsTotal             *prometheus.CounterVec
	sourceRequestsTotal      *prometheus.CounterVec
	sourceRequestDurationSec *prometheus.HistogramVec
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDurationSec   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		etlRecordsReadTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_records_read_total",
				Help: "Total number of raw records read from the source, labeled by series.",
			},
			[]string{"series"},
		)

		etlRecordsLoadedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_records_loaded_total",
				Help: "Total number of normalized records committed, labeled by series.",
			},
			[]string{"series"},
		)

		etlRecordsSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_records_skipped_total",
				Help: "Total number of records skipped during normalization, labeled by series.",
			},
			[]string{"series"},
		)

		etlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "etl_runs_total",
				Help: "Total number of finished runs, labeled by final status.",
			},
			[]string{"status"},
		)

		sourceRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_requests_total",
				Help: "Total number of source API requests, labeled by endpoint and code.",
			},
			[]string{"endpoint", "code"},
		)

		sourceRequestDurationSec = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "source_request_duration_seconds",
				Help:    "Histogram of source API request latencies, labeled by endpoint.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSec = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRecordsRead adds to the raw-record counter for a series.
func ObserveRecordsRead(series string, n int) {
	if n > 0 {
		etlRecordsReadTotal.WithLabelValues(series).Add(float64(n))
	}
}

// ObserveRecordsLoaded adds to the committed-record counter for a series.
func ObserveRecordsLoaded(series string, n int) {
	if n > 0 {
		etlRecordsLoadedTotal.WithLabelValues(series).Add(float64(n))
	}
}

// ObserveRecordsSkipped adds to the skipped-record counter for a series.
func ObserveRecordsSkipped(series string, n int) {
	if n > 0 {
		etlRecordsSkippedTotal.WithLabelValues(series).Add(float64(n))
	}
}

// ObserveRun increments the run counter for the given final status.
func ObserveRun(status string) {
	etlRunsTotal.WithLabelValues(status).Inc()
}

// ObserveSourceRequest records one source API round trip.
func ObserveSourceRequest(endpoint string, code int, duration time.Duration) {
	sourceRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	sourceRequestDurationSec.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSec.WithLabelValues(method, route).Observe(duration.Seconds())
}
