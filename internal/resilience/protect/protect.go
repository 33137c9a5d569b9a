// Package protect is the integration point between call sites and the
// resilience core. It composes a circuit breaker and the error handler
// around an arbitrary fallible operation: permission check before the call,
// timeout enforcement around it, classification and recovery after a
// failure, and an optional fallback once recovery is exhausted.
package protect

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"newsbot-resilience/internal/observability/metrics"
	"newsbot-resilience/internal/observability/tracing"
	"newsbot-resilience/internal/resilience/circuitbreaker"
	"newsbot-resilience/internal/resilience/errclass"
	"newsbot-resilience/internal/resilience/errhandler"
)

// DefaultMaxReinvocations caps recovery-driven re-invocations of the
// operation per original call, across all strategies. The shared budget
// guarantees termination even when strategies hand off to each other.
const DefaultMaxReinvocations = 3

// Outcome labels for call metrics.
const (
	outcomeSuccess  = "success"
	outcomeFailure  = "failure"
	outcomeTimeout  = "timeout"
	outcomeRejected = "rejected"
	outcomeCanceled = "canceled"
	outcomeFallback = "fallback"
)

// Config configures a Protector.
type Config struct {
	// MaxReinvocations is the shared re-invocation budget per original
	// call. Zero means the default.
	MaxReinvocations int

	// Resources maps resource names to breaker configurations. Resources
	// not listed use circuitbreaker.DefaultConfig.
	Resources map[string]circuitbreaker.Config
}

// Protector wires the breaker registry and the error handler together for
// protected calls. Construct one at process start and share it.
type Protector struct {
	registry         *circuitbreaker.Registry
	handler          *errhandler.Handler
	logger           *slog.Logger
	maxReinvocations int
	resources        map[string]circuitbreaker.Config
}

// New creates a Protector and installs the registry state-change hook that
// feeds breaker metrics and breaker-open alerts.
func New(reg *circuitbreaker.Registry, h *errhandler.Handler, cfg Config, logger *slog.Logger) *Protector {
	if cfg.MaxReinvocations <= 0 {
		cfg.MaxReinvocations = DefaultMaxReinvocations
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Protector{
		registry:         reg,
		handler:          h,
		logger:           logger,
		maxReinvocations: cfg.MaxReinvocations,
		resources:        cfg.Resources,
	}

	reg.SetOnStateChange(func(name string, from, to circuitbreaker.State) {
		metrics.RecordStateChange(name, to.String(), float64(to))
		if to == circuitbreaker.StateOpen {
			h.NotifyBreakerOpen(name)
		}
	})

	return p
}

// Registry returns the breaker registry, for health introspection.
func (p *Protector) Registry() *circuitbreaker.Registry { return p.registry }

// Handler returns the error handler, for stats introspection.
func (p *Protector) Handler() *errhandler.Handler { return p.handler }

// breakerFor returns the breaker for a resource, applying any configured
// per-resource settings on first reference.
func (p *Protector) breakerFor(resource string) *circuitbreaker.CircuitBreaker {
	if cfg, ok := p.resources[resource]; ok {
		return p.registry.GetOrCreate(resource, &cfg)
	}
	return p.registry.GetOrCreate(resource, nil)
}

// Do executes op under circuit breaker and error handler protection. It is
// the sole call-site integration point.
//
// If the breaker rejects the call, op is never invoked and a
// CircuitOpenError is returned (or the fallback's value, if one is given).
// If op fails or times out, the failure is reported to the breaker and
// handed to the error handler; when a recovery strategy sanctions a retry,
// op is re-invoked within the shared re-invocation budget. Once recovery is
// exhausted the final failure is surfaced, or absorbed by the fallback.
//
// Cancellation of ctx is a distinct outcome: it does not count as a breaker
// failure and is returned as the context's error.
func Do[T any](ctx context.Context, p *Protector, resource string, ectx errhandler.Context, op func(context.Context) (T, error), fallback func() T) (T, error) {
	var zero T
	if ectx.Attempt < 1 {
		ectx.Attempt = 1
	}

	cb := p.breakerFor(resource)
	start := time.Now()

	ctx, span := tracing.Tracer().Start(ctx, "protected_call",
		trace.WithAttributes(
			attribute.String("resilience.resource", resource),
			attribute.String("resilience.component", ectx.Component),
			attribute.String("resilience.operation", ectx.Operation),
		))
	defer span.End()

	finish := func(outcome string) {
		span.SetAttributes(attribute.String("resilience.outcome", outcome))
		metrics.RecordCall(resource, outcome, time.Since(start))
	}

	sanctioned := false
	reinvocations := 0
	var lastErr error
	var lastRecord *errhandler.Record

	for {
		if err := cb.Allow(); err != nil {
			metrics.CircuitRejectionsTotal.WithLabelValues(resource).Inc()
			if reinvocations == 0 {
				// Rejected outright: op was never attempted.
				if fallback != nil {
					finish(outcomeFallback)
					return fallback(), nil
				}
				finish(outcomeRejected)
				return zero, &CircuitOpenError{Resource: resource, Err: err}
			}
			// Breaker opened between recovery attempts: stop retrying.
			break
		}

		result, err := runWithTimeout(ctx, cb.Config().CallTimeout, op)
		if err == nil {
			cb.OnSuccess()
			p.handler.OnComponentSuccess(ectx.Component)
			finish(outcomeSuccess)
			return result, nil
		}

		// Caller cancellation: not a dependency failure.
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			finish(outcomeCanceled)
			return zero, err
		}

		timedOut := errors.Is(err, context.DeadlineExceeded)
		if timedOut {
			err = &TimeoutError{Resource: resource, Timeout: cb.Config().CallTimeout, Err: err}
		}

		p.reportToBreaker(cb, err, timedOut)
		lastErr = err
		lastRecord = p.handler.HandleError(ctx, err, ectx, true)

		// Cancellation while a recovery strategy was waiting is the
		// caller's decision: skip the fallback and surface it directly.
		if ctx.Err() != nil {
			finish(outcomeCanceled)
			return zero, ctx.Err()
		}

		if !lastRecord.Recovered {
			break
		}
		sanctioned = true
		if reinvocations >= p.maxReinvocations {
			p.logger.Warn("recovery re-invocation budget exhausted",
				slog.String("resource", resource),
				slog.Int("budget", p.maxReinvocations))
			break
		}
		reinvocations++
		ectx.Attempt++
	}

	if fallback != nil {
		p.logger.Info("returning fallback result",
			slog.String("resource", resource),
			slog.String("component", ectx.Component),
			slog.Any("error", lastErr))
		finish(outcomeFallback)
		return fallback(), nil
	}

	if sanctioned {
		finish(outcomeFailure)
		return zero, &RecoveryExhaustedError{
			Resource: resource,
			Attempts: ectx.Attempt,
			Err:      lastErr,
			Record:   lastRecord,
		}
	}

	var timeoutErr *TimeoutError
	if errors.As(lastErr, &timeoutErr) {
		finish(outcomeTimeout)
		return zero, lastErr
	}

	finish(outcomeFailure)
	return zero, &OperationError{Resource: resource, Err: lastErr, Record: lastRecord}
}

// reportToBreaker translates an operation failure into breaker accounting.
// HTTP status codes outside the configured failure set mean the dependency
// answered: the call failed for the caller but the breaker records a
// completed call, not a failure.
func (p *Protector) reportToBreaker(cb *circuitbreaker.CircuitBreaker, err error, timedOut bool) {
	if timedOut {
		cb.OnTimeout()
		return
	}

	var httpErr *errclass.HTTPError
	if errors.As(err, &httpErr) && !cb.Config().FailureStatusCodes[httpErr.StatusCode] {
		cb.OnSuccess()
		return
	}
	cb.OnFailure()
}

// runWithTimeout executes op under the configured call timeout.
//
// The operation runs in its own goroutine with a derived deadline context.
// If it does not respect cancellation the goroutine is abandoned after the
// deadline (best effort: the call is reported as timed out but the work may
// still complete in the background).
func runWithTimeout[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		val, err := op(callCtx)
		done <- outcome{val: val, err: err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-callCtx.Done():
		return zero, callCtx.Err()
	}
}
