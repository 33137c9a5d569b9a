// Package tracing provides OpenTelemetry tracing integration for the
// resilience core.
//
// The protected-call wrapper starts a span per call with resource and
// outcome attributes, and the status server uses Middleware to trace
// incoming requests. Exporter wiring (OTLP, Jaeger, stdout) is left to the
// host process; without a configured tracer provider the spans are no-ops.
package tracing
