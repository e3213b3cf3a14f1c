// Package metrics holds the prometheus collectors of the lift sync pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartlift_monitor/internal/models"
)

const namespace = "smartlift"

// Command outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// Metrics contains the sync pipeline collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	StreamMessages     *prometheus.CounterVec
	Flushes            prometheus.Counter
	FlushBatchSize     prometheus.Histogram
	ProjectionFailures prometheus.Counter
	Commands           *prometheus.CounterVec
	ConnectionStatus   *prometheus.GaugeVec
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		StreamMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "messages_total",
				Help:      "Stream messages received, by kind (snapshot, diff)",
			},
			[]string{"kind"},
		),

		Flushes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "flushes_total",
				Help:      "Diff batches applied to the store",
			},
		),

		FlushBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "flush_batch_size",
				Help:      "Number of lifts per applied diff batch",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250},
			},
		),

		ProjectionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "projector",
				Name:      "failures_total",
				Help:      "Lift records skipped because projection failed",
			},
		),

		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "total",
				Help:      "Commands dispatched, by command and outcome",
			},
			[]string{"command", "outcome"},
		),

		ConnectionStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "status",
				Help:      "Current stream connection status (1 for the active status, 0 otherwise)",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.StreamMessages,
		m.Flushes,
		m.FlushBatchSize,
		m.ProjectionFailures,
		m.Commands,
		m.ConnectionStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordMessage increments the stream message counter.
func (m *Metrics) RecordMessage(kind string) {
	m.StreamMessages.WithLabelValues(kind).Inc()
}

// RecordFlush counts one applied batch of the given size.
func (m *Metrics) RecordFlush(batch int) {
	m.Flushes.Inc()
	m.FlushBatchSize.Observe(float64(batch))
}

// RecordProjectionFailure counts one skipped lift record.
func (m *Metrics) RecordProjectionFailure() {
	m.ProjectionFailures.Inc()
}

// RecordCommand counts one command outcome.
func (m *Metrics) RecordCommand(command, outcome string) {
	m.Commands.WithLabelValues(command, outcome).Inc()
}

var allStatuses = []models.ConnStatus{
	models.StatusConnecting,
	models.StatusOnline,
	models.StatusError,
	models.StatusDisconnected,
}

// RecordStatus marks st as the active connection status.
func (m *Metrics) RecordStatus(st models.ConnStatus) {
	for _, s := range allStatuses {
		v := 0.0
		if s == st {
			v = 1.0
		}
		m.ConnectionStatus.WithLabelValues(string(s)).Set(v)
	}
}
