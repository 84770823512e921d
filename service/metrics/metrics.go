package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Ledger (Esplora) metrics
	ledgerCallsTotal   *prometheus.CounterVec
	ledgerCallDuration *prometheus.HistogramVec
	ledgerPacingWait   prometheus.Histogram

	// Navigation metrics
	navigationsTotal *prometheus.CounterVec
	graphEntries     prometheus.Gauge

	// Session store metrics
	sessionOpsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		ledgerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_calls_total",
				Help: "Total number of ledger API calls by method and status",
			},
			[]string{"method", "status"},
		),
		ledgerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_call_duration_seconds",
				Help:    "Duration of ledger API calls in seconds, excluding pacing",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		ledgerPacingWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_pacing_wait_seconds",
				Help:    "Time spent waiting on the request pacing gate",
				Buckets: []float64{0, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
		),

		navigationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navigations_total",
				Help: "Total number of follow commands by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		graphEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "graph_entries",
				Help: "Number of visited transactions in the current session graph",
			},
		),

		sessionOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_operations_total",
				Help: "Total number of session dump/load operations by backend and status",
			},
			[]string{"operation", "backend", "status"},
		),
	}
}

// Ledger metric helpers

// RecordLedgerCall records a ledger API call with duration.
func (m *Metrics) RecordLedgerCall(method, status string, duration float64) {
	if m == nil {
		return
	}
	m.ledgerCallsTotal.WithLabelValues(method, status).Inc()
	m.ledgerCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordPacingWait records how long a call waited on the pacing gate.
func (m *Metrics) RecordPacingWait(duration float64) {
	if m == nil {
		return
	}
	m.ledgerPacingWait.Observe(duration)
}

// Navigation metric helpers

// RecordNavigation records a follow command and how it ended.
func (m *Metrics) RecordNavigation(direction, outcome string) {
	if m == nil {
		return
	}
	m.navigationsTotal.WithLabelValues(direction, outcome).Inc()
}

// SetGraphEntries records the size of the session graph.
func (m *Metrics) SetGraphEntries(n int) {
	if m == nil {
		return
	}
	m.graphEntries.Set(float64(n))
}

// Session metric helpers

// RecordSessionOp records a dump or load.
func (m *Metrics) RecordSessionOp(operation, backend string, err error) {
	if m == nil {
		return
	}
	m.sessionOpsTotal.WithLabelValues(operation, backend, errorStatus(err)).Inc()
}

func errorStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
