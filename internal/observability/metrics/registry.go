// Package metrics provides centralized Prometheus metrics for the
// resilience core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Circuit breaker metrics track per-resource breaker behavior
var (
	// CircuitState reports the current breaker state per resource
	// (0=closed, 1=open, 2=half-open).
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resilience_circuit_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"resource"},
	)

	// CircuitTransitionsTotal counts breaker state transitions.
	CircuitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_circuit_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"resource", "to"},
	)

	// CircuitRejectionsTotal counts calls rejected because a breaker was
	// open or a probe was already in flight.
	CircuitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_circuit_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"resource"},
	)
)

// Protected call metrics track wrapped operations end to end
var (
	// CallsTotal counts protected calls by final outcome
	// (success, failure, timeout, rejected, canceled, fallback).
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_calls_total",
			Help: "Total number of protected calls by outcome",
		},
		[]string{"resource", "outcome"},
	)

	// CallDuration measures wall time of protected calls, recovery delays
	// included.
	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilience_call_duration_seconds",
			Help:    "Protected call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"resource"},
	)
)

// Error handling metrics track classification, recovery, and alerting
var (
	// ErrorsTotal counts handled failures by component, category, severity.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_errors_total",
			Help: "Total number of handled errors",
		},
		[]string{"component", "category", "severity"},
	)

	// RecoveriesTotal counts recovery attempts by strategy and result.
	RecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_recoveries_total",
			Help: "Total number of recovery attempts by strategy and result",
		},
		[]string{"strategy", "result"},
	)

	// AlertsTotal counts alert events emitted to the sink.
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_alerts_total",
			Help: "Total number of alerts emitted",
		},
		[]string{"severity"},
	)
)

// RecordCall records one finished protected call with its outcome and
// duration.
func RecordCall(resource, outcome string, duration time.Duration) {
	CallsTotal.WithLabelValues(resource, outcome).Inc()
	CallDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordStateChange updates the state gauge and transition counter for a
// breaker transition. state is the numeric gauge value for the new state.
func RecordStateChange(resource, to string, state float64) {
	CircuitState.WithLabelValues(resource).Set(state)
	CircuitTransitionsTotal.WithLabelValues(resource, to).Inc()
}
