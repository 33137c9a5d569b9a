package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the resilience core.
var tracer = otel.Tracer("newsbot-resilience")

// Tracer returns the global tracer for creating spans.
//
// Example usage:
//
//	ctx, span := tracing.Tracer().Start(ctx, "protected-call")
//	defer span.End()
func Tracer() trace.Tracer {
	return tracer
}
