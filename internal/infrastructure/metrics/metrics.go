// Package metrics exposes detection telemetry in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecolens"

// Metrics holds the detection and lookup collectors. It satisfies
// usecase.ContextRecorder.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal     *prometheus.CounterVec
	RetriesTotal   prometheus.Counter
	PopupsTotal    prometheus.Counter
	LookupsTotal   *prometheus.CounterVec
	ActiveContexts prometheus.Gauge
}

// New creates a private registry with the Go and process collectors plus the
// EcoLens collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.ScansTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "scans_total",
			Help:      "Product scans by outcome",
		},
		[]string{"outcome"},
	)

	m.RetriesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "retries_scheduled_total",
			Help:      "Delayed rescans scheduled after an empty extraction",
		},
	)

	m.PopupsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "popups_shown_total",
			Help:      "Confirmation prompts shown",
		},
	)

	m.LookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sustainability",
			Name:      "lookups_total",
			Help:      "Sustainability lookups by report status",
		},
		[]string{"status"},
	)

	m.ActiveContexts = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "active_contexts",
			Help:      "Page contexts currently being watched",
		},
	)

	return m
}

// RecordScan counts one scan outcome
func (m *Metrics) RecordScan(outcome string) {
	m.ScansTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry counts one scheduled rescan
func (m *Metrics) RecordRetry() {
	m.RetriesTotal.Inc()
}

// RecordPopup counts one confirmation prompt
func (m *Metrics) RecordPopup() {
	m.PopupsTotal.Inc()
}

// RecordLookup counts one finished sustainability lookup
func (m *Metrics) RecordLookup(status string) {
	m.LookupsTotal.WithLabelValues(status).Inc()
}

// SetActiveContexts records the number of open browsing contexts
func (m *Metrics) SetActiveContexts(n int) {
	m.ActiveContexts.Set(float64(n))
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the text exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
