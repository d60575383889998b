package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palona_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "palona_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Widget metrics
	WidgetsMounted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "palona_widgets_mounted",
			Help: "Widgets currently mounted",
		},
	)

	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palona_dispatch_total",
			Help: "Completed dispatches by input kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: "text" or "image"
	)

	ShortCircuitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palona_short_circuit_total",
			Help: "Text inputs answered locally without a backend call",
		},
		[]string{"rule"},
	)

	// Backend metrics
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "palona_backend_request_duration_seconds",
			Help:    "Recommendation backend round-trip latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)
)
