package oauth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for client authentication.
type Metrics struct {
	resolutionTotal    *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	registry           *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avoauthd"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.resolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clientauth",
			Name:      "resolution_total",
			Help:      "Total number of client authentication resolutions",
		},
		[]string{"path", "outcome"},
	)

	m.resolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "clientauth",
			Name:      "resolution_duration_seconds",
			Help:      "Client authentication resolution duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"path", "outcome"},
	)

	m.registry.MustRegister(
		m.resolutionTotal,
		m.resolutionDuration,
	)

	return m
}

// RecordResolution records one client authentication resolution.
func (m *Metrics) RecordResolution(path, outcome string, duration time.Duration) {
	m.resolutionTotal.WithLabelValues(path, outcome).Inc()
	m.resolutionDuration.WithLabelValues(path, outcome).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegister registers the metrics with the given registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.resolutionTotal,
		m.resolutionDuration,
	)
}
