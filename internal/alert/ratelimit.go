package alert

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedSink wraps another sink with a token bucket so that alert
// storms do not overwhelm the delivery channel. Events that exceed the
// budget are dropped, not queued: for alerting, a stale alert is worse than
// a dropped duplicate.
type RateLimitedSink struct {
	inner   Sink
	limiter *rate.Limiter
}

// NewRateLimitedSink creates a rate-limited wrapper around inner.
//
// eventsPerSecond is the sustained delivery rate, burst the number of events
// that may be delivered back to back (e.g. 0.5 and 5: one alert every two
// seconds on average, five immediately after a quiet period).
func NewRateLimitedSink(inner Sink, eventsPerSecond float64, burst int) *RateLimitedSink {
	return &RateLimitedSink{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
	}
}

// Notify implements Sink. Events over the rate budget are silently dropped.
func (s *RateLimitedSink) Notify(ctx context.Context, ev Event) error {
	if !s.limiter.Allow() {
		return nil
	}
	return s.inner.Notify(ctx, ev)
}
