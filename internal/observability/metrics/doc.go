// Package metrics defines the Prometheus collectors exported by the
// resilience core and helpers for recording them.
//
// All collectors are registered with the default registry via promauto and
// exposed through the /metrics endpoint of cmd/statusd. Metric names share
// the resilience_ prefix:
//
//   - resilience_circuit_state{resource}
//   - resilience_circuit_transitions_total{resource,to}
//   - resilience_circuit_rejections_total{resource}
//   - resilience_calls_total{resource,outcome}
//   - resilience_call_duration_seconds{resource}
//   - resilience_errors_total{component,category,severity}
//   - resilience_recoveries_total{strategy,result}
//   - resilience_alerts_total{severity}
package metrics
