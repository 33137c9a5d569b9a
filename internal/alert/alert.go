// Package alert provides abstraction for delivering alert notifications
// raised by the resilience core: critical or high-severity failures and
// circuit breakers tripping open. It defines the Sink interface which allows
// different delivery mechanisms (log, webhook, chat) to be used
// interchangeably through dependency injection.
package alert

import (
	"context"
	"time"
)

// Event is a single alert to deliver.
type Event struct {
	// Title is a short human-readable summary line.
	Title string

	// Message carries the underlying failure message.
	Message string

	// Severity is the severity label ("critical", "high", ...).
	Severity string

	// Component is the component that raised the alert.
	Component string

	// Timestamp is when the triggering event occurred.
	Timestamp time.Time

	// Metadata carries free-form structured details.
	Metadata map[string]any
}

// Sink delivers alert events.
// Implementations should handle their own timeouts and rate limiting and
// must never panic; delivery failures are reported via the returned error
// and the caller only logs them.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// NopSink discards all events. Used when alerting is disabled.
type NopSink struct{}

// Notify implements Sink and does nothing.
func (NopSink) Notify(ctx context.Context, ev Event) error {
	return nil
}

// Funcs adapts a plain function to the Sink interface.
type Funcs func(ctx context.Context, ev Event) error

// Notify implements Sink.
func (f Funcs) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// MultiSink fans an event out to several sinks. The first delivery error is
// returned after all sinks have been attempted.
type MultiSink []Sink

// Notify implements Sink.
func (m MultiSink) Notify(ctx context.Context, ev Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Notify(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
