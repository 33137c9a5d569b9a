// Package errhandler implements the central error handling and recovery
// orchestrator. Every failure observed by a protected call is classified,
// recorded in a bounded in-memory history, counted in aggregate statistics,
// and optionally run through the registered recovery strategies. Critical
// and high-severity failures, and repeated failures of one component, are
// forwarded to an alert sink.
package errhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsbot-resilience/internal/alert"
	"newsbot-resilience/internal/observability/logging"
	"newsbot-resilience/internal/observability/metrics"
	"newsbot-resilience/internal/resilience/errclass"
)

// Strategy is a recovery policy. Implementations answer whether they apply
// to a failure and, if so, perform one bounded recovery action (e.g. a
// backoff delay, a session invalidation, a configuration reload).
//
// Recover returns true when the underlying operation should now be retried
// by the caller; the handler only sanctions the retry, it never re-invokes
// the operation itself. A non-nil error from Recover is treated as a
// secondary failure: logged, counted, and handled as if the strategy were
// exhausted.
type Strategy interface {
	Name() string
	CanRecover(err error, ectx *Context) bool
	Recover(ctx context.Context, err error, ectx *Context, attempt int) (bool, error)
}

const (
	// DefaultHistoryCapacity bounds the in-memory error history.
	DefaultHistoryCapacity = 1000

	// DefaultAlertThreshold is the consecutive-failure count per component
	// that triggers an alert regardless of severity.
	DefaultAlertThreshold = 5

	// recentErrors is how many records Stats returns.
	recentErrors = 10

	// sinkTimeout bounds alert delivery so a slow sink cannot stall the
	// call path.
	sinkTimeout = 5 * time.Second
)

// HandlerConfig configures the error handler.
type HandlerConfig struct {
	// HistoryCapacity is the maximum number of records kept in memory.
	// Oldest records are evicted beyond this. Zero means the default.
	HistoryCapacity int

	// AlertThreshold is the number of consecutive failures for one
	// component after which an alert is emitted even for low severities.
	// Zero means the default.
	AlertThreshold int
}

// Stats is an aggregate snapshot of handled errors.
type Stats struct {
	TotalErrors  uint64            `json:"total_errors"`
	BySeverity   map[string]uint64 `json:"by_severity"`
	ByCategory   map[string]uint64 `json:"by_category"`
	ByComponent  map[string]uint64 `json:"by_component"`
	RecoveryRate float64           `json:"recovery_rate"`
	RecentErrors []Record          `json:"recent_errors"`
}

// Handler is the central error handler. Safe for concurrent use; the lock
// guards bookkeeping only and is never held across a recovery delay.
type Handler struct {
	cfg    HandlerConfig
	logger *slog.Logger
	sink   alert.Sink

	mu                sync.Mutex
	strategies        []Strategy
	history           []*Record
	totalErrors       uint64
	bySeverity        map[string]uint64
	byCategory        map[string]uint64
	byComponent       map[string]uint64
	consecutive       map[string]int
	recoveryAttempted uint64
	recoverySucceeded uint64
}

// NewHandler creates an error handler delivering alerts to sink.
// A nil sink disables alerting; a nil logger uses slog.Default().
func NewHandler(cfg HandlerConfig, sink alert.Sink, logger *slog.Logger) *Handler {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultHistoryCapacity
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = DefaultAlertThreshold
	}
	if sink == nil {
		sink = alert.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:         cfg,
		logger:      logger,
		sink:        sink,
		bySeverity:  make(map[string]uint64),
		byCategory:  make(map[string]uint64),
		byComponent: make(map[string]uint64),
		consecutive: make(map[string]int),
	}
}

// AddStrategy appends a recovery strategy. Strategies are consulted in
// registration order.
func (h *Handler) AddStrategy(s Strategy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.strategies = append(h.strategies, s)
}

// HandleError records and classifies a failure, optionally attempting
// recovery. It never fails on its own account: classification and
// bookkeeping cannot break the call path.
//
// The returned record's Recovered field reports whether a strategy
// sanctioned a retry of the underlying operation. Confirming that the retry
// actually succeeds is the caller's responsibility.
func (h *Handler) HandleError(ctx context.Context, err error, ectx Context, attemptRecovery bool) *Record {
	category, severity := errclass.Classify(err)
	record := newRecord(err, ectx, category, severity, time.Now())

	h.mu.Lock()
	h.appendLocked(record)
	h.totalErrors++
	h.bySeverity[record.SeverityLabel]++
	h.byCategory[record.CategoryLabel]++
	h.byComponent[ectx.Component]++
	h.consecutive[ectx.Component]++
	consecutive := h.consecutive[ectx.Component]
	strategies := make([]Strategy, len(h.strategies))
	copy(strategies, h.strategies)
	h.mu.Unlock()

	metrics.ErrorsTotal.WithLabelValues(ectx.Component, record.CategoryLabel, record.SeverityLabel).Inc()
	h.logRecord(ctx, record)

	if attemptRecovery {
		recovered, strategyName, attempts := h.attemptRecovery(ctx, err, &ectx, strategies)

		h.mu.Lock()
		h.recoveryAttempted++
		if recovered {
			h.recoverySucceeded++
		}
		record.Recovered = recovered
		record.RecoveryAttempts = attempts
		record.RecoveryStrategy = strategyName
		h.mu.Unlock()
	}

	if severity >= errclass.SeverityHigh || consecutive >= h.cfg.AlertThreshold {
		h.emitAlert(record, consecutive)
	}

	return record
}

// attemptRecovery walks the strategies in order and invokes the first ones
// that apply until a retry is sanctioned. Strategy errors are secondary
// failures: logged and treated as exhaustion of that strategy. The returned
// count is the number of strategies actually invoked for this failure.
func (h *Handler) attemptRecovery(ctx context.Context, err error, ectx *Context, strategies []Strategy) (bool, string, int) {
	logger := logging.WithComponent(h.logger, ectx.Component, ectx.Operation)

	attempts := 0
	for _, s := range strategies {
		if !s.CanRecover(err, ectx) {
			continue
		}

		logger.Info("attempting recovery",
			slog.String("strategy", s.Name()),
			slog.Int("attempt", ectx.Attempt))

		attempts++
		sanctioned, rerr := s.Recover(ctx, err, ectx, ectx.Attempt)
		if rerr != nil {
			// Caller cancellation is not a strategy failure: stop the walk
			// so the distinct cancellation outcome reaches the caller.
			if errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
				return false, "", attempts
			}
			logger.Warn("recovery strategy failed",
				slog.String("strategy", s.Name()),
				slog.Any("error", rerr))
			metrics.RecoveriesTotal.WithLabelValues(s.Name(), "error").Inc()
			continue
		}
		if sanctioned {
			metrics.RecoveriesTotal.WithLabelValues(s.Name(), "sanctioned").Inc()
			return true, s.Name(), attempts
		}
		metrics.RecoveriesTotal.WithLabelValues(s.Name(), "exhausted").Inc()
	}
	return false, "", attempts
}

// OnComponentSuccess resets the consecutive-failure count for a component
// after a successful call, so the alert threshold tracks failure streaks.
func (h *Handler) OnComponentSuccess(component string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.consecutive, component)
}

// NotifyBreakerOpen forwards a breaker-open transition to the alert sink.
func (h *Handler) NotifyBreakerOpen(resource string) {
	ev := alert.Event{
		Title:     fmt.Sprintf("Circuit breaker opened: %s", resource),
		Message:   fmt.Sprintf("circuit breaker for resource %q tripped open", resource),
		Severity:  errclass.SeverityHigh.String(),
		Component: resource,
		Timestamp: time.Now(),
	}
	h.deliver(ev)
}

// Stats returns an aggregate snapshot of handled errors.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		TotalErrors: h.totalErrors,
		BySeverity:  make(map[string]uint64, len(h.bySeverity)),
		ByCategory:  make(map[string]uint64, len(h.byCategory)),
		ByComponent: make(map[string]uint64, len(h.byComponent)),
	}
	for k, v := range h.bySeverity {
		s.BySeverity[k] = v
	}
	for k, v := range h.byCategory {
		s.ByCategory[k] = v
	}
	for k, v := range h.byComponent {
		s.ByComponent[k] = v
	}
	if h.recoveryAttempted > 0 {
		s.RecoveryRate = float64(h.recoverySucceeded) / float64(h.recoveryAttempted) * 100
	}

	n := len(h.history)
	start := n - recentErrors
	if start < 0 {
		start = 0
	}
	s.RecentErrors = make([]Record, 0, n-start)
	for _, r := range h.history[start:] {
		s.RecentErrors = append(s.RecentErrors, *r)
	}
	return s
}

// appendLocked appends to the bounded history, evicting the oldest entries.
// Must be called with h.mu held.
func (h *Handler) appendLocked(r *Record) {
	h.history = append(h.history, r)
	if len(h.history) > h.cfg.HistoryCapacity {
		// Copy down instead of re-slicing so evicted records are freed.
		n := copy(h.history, h.history[len(h.history)-h.cfg.HistoryCapacity:])
		h.history = h.history[:n]
	}
}

// logRecord logs a failure at a level matching its severity.
func (h *Handler) logRecord(ctx context.Context, r *Record) {
	attrs := []any{
		slog.String("error_id", r.ID),
		slog.String("category", r.CategoryLabel),
		slog.String("severity", r.SeverityLabel),
		slog.String("component", r.Context.Component),
		slog.String("operation", r.Context.Operation),
		slog.Int("attempt", r.Context.Attempt),
	}

	switch r.Severity {
	case errclass.SeverityCritical, errclass.SeverityHigh:
		h.logger.ErrorContext(ctx, r.Message, attrs...)
	case errclass.SeverityMedium:
		h.logger.WarnContext(ctx, r.Message, attrs...)
	default:
		h.logger.InfoContext(ctx, r.Message, attrs...)
	}
}

// emitAlert sends a record to the alert sink.
func (h *Handler) emitAlert(r *Record, consecutive int) {
	ev := alert.Event{
		Title:     fmt.Sprintf("%s error in %s", r.SeverityLabel, r.Context.Component),
		Message:   r.Message,
		Severity:  r.SeverityLabel,
		Component: r.Context.Component,
		Timestamp: r.Timestamp,
		Metadata: map[string]any{
			"error_id":             r.ID,
			"category":             r.CategoryLabel,
			"operation":            r.Context.Operation,
			"consecutive_failures": consecutive,
			"recovered":            r.Recovered,
		},
	}
	h.deliver(ev)
}

// deliver pushes an event to the sink with a bounded timeout. Delivery
// failures are logged, never propagated: alerting must not fail the call
// path.
func (h *Handler) deliver(ev alert.Event) {
	metrics.AlertsTotal.WithLabelValues(ev.Severity).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	if err := h.sink.Notify(ctx, ev); err != nil {
		h.logger.Warn("alert delivery failed",
			slog.String("title", ev.Title),
			slog.Any("error", err))
	}
}
