package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the extractor. Metric names are
// prefixed with the service name so multiple workers can share a registry.
type Metrics struct {
	processedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	stagedBytes     prometheus.Histogram
}

// NewMetrics creates and registers the extractor collectors on the given
// registerer. Pass prometheus.DefaultRegisterer outside of tests.
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_processed_total", serviceName),
				Help: "Processed artifacts by terminal status and artifact type.",
			},
			[]string{"status", "type"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_errors_total", serviceName),
				Help: "Errors by operation.",
			},
			[]string{"operation"},
		),
		durationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_duration_seconds", serviceName),
				Help:    "Operation duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		stagedBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    fmt.Sprintf("%s_staged_message_bytes", serviceName),
				Help:    "Size of staged HL7 message payloads.",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
		),
	}

	reg.MustRegister(m.processedTotal, m.errorsTotal, m.durationSeconds, m.stagedBytes)
	return m
}

// RecordProcessed counts one artifact reaching the given status.
func (m *Metrics) RecordProcessed(status, artifactType string) {
	m.processedTotal.WithLabelValues(status, artifactType).Inc()
}

// RecordError counts one failure of the given operation.
func (m *Metrics) RecordError(operation string) {
	m.errorsTotal.WithLabelValues(operation).Inc()
}

// ObserveDuration records how long an operation took.
func (m *Metrics) ObserveDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// ObserveStagedBytes records the size of one staged message payload.
func (m *Metrics) ObserveStagedBytes(n int) {
	m.stagedBytes.Observe(float64(n))
}
