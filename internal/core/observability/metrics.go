package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of geocoder calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"upstream"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	csvRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csv_rows_total",
			Help: "Geocoded CSV rows by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	csvBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csv_batches_total",
			Help: "CSV batches by endpoint and result (ok or error kind).",
		},
		[]string{"endpoint", "result"},
	)

	csvUploadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csv_upload_bytes",
			Help:    "Size of uploaded CSV files in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to 256MiB
		},
		[]string{"endpoint"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ObserveRow(endpoint, outcome string) {
	csvRows.WithLabelValues(endpoint, outcome).Inc()
}

func ObserveBatch(endpoint, result string) {
	if result == "" {
		result = "ok"
	}
	csvBatches.WithLabelValues(endpoint, result).Inc()
}

func ObserveUpload(endpoint string, size int) {
	csvUploadBytes.WithLabelValues(endpoint).Observe(float64(size))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// Collectors returns the application metrics so a dedicated registry can
// expose them next to its own runtime collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		csvRows,
		csvBatches,
		csvUploadBytes,
	}
}
