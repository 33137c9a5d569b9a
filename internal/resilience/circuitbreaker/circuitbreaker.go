// Package circuitbreaker provides per-resource circuit breakers that guard
// external service calls and stop traffic to a failing dependency for a
// cooldown period. Each breaker is an independent Closed/Open/HalfOpen state
// machine; the Registry maps resource names to breaker instances.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed is the normal operating state. Calls flow through.
	StateClosed State = iota

	// StateOpen is the tripped state. Calls are rejected immediately.
	StateOpen

	// StateHalfOpen is the recovery probing state. A single in-flight call
	// at a time is allowed to test whether the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow when the breaker rejects the call.
// A rejection means the protected operation was never attempted; it must not
// be treated as an operation failure.
var ErrOpen = errors.New("circuit breaker is open")

// IsOpen reports whether err is a circuit-open rejection.
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpen)
}

// Stats is a point-in-time snapshot of a breaker's counters.
type Stats struct {
	Name                 string     `json:"name"`
	State                string     `json:"state"`
	TotalCalls           uint64     `json:"total_calls"`
	TotalSuccesses       uint64     `json:"total_successes"`
	TotalFailures        uint64     `json:"total_failures"`
	TotalRejections      uint64     `json:"total_rejections"`
	TotalTimeouts        uint64     `json:"total_timeouts"`
	OpenedCount          uint64     `json:"opened_count"`
	ConsecutiveFailures  int        `json:"consecutive_failures"`
	ConsecutiveSuccesses int        `json:"consecutive_successes"`
	SuccessRate          float64    `json:"success_rate"`
	LastFailureTime      *time.Time `json:"last_failure_time,omitempty"`
	LastSuccessTime      *time.Time `json:"last_success_time,omitempty"`
}

// clock abstracts time for deterministic tests.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker guards a single named external resource.
// All state transitions happen under one mutex so that concurrent callers
// observe Closed->Open and Open->HalfOpen->Closed consistently.
type CircuitBreaker struct {
	name   string
	config Config
	logger *slog.Logger
	clock  clock

	// onStateChange fires after a transition completes, with the breaker
	// lock released, so a slow observer cannot stall Allow or Stats.
	onStateChange func(name string, from, to State)

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureTime      time.Time
	lastSuccessTime      time.Time
	probeInFlight        bool

	totalCalls      uint64
	totalSuccesses  uint64
	totalFailures   uint64
	totalRejections uint64
	totalTimeouts   uint64
	openedCount     uint64
}

// New creates a circuit breaker with the given configuration.
// Zero config fields are replaced by defaults.
func New(cfg Config) *CircuitBreaker {
	return newWithClock(cfg, realClock{})
}

func newWithClock(cfg Config, clk clock) *CircuitBreaker {
	cfg.applyDefaults()
	return &CircuitBreaker{
		name:   cfg.Name,
		config: cfg,
		logger: slog.Default().With(slog.String("circuit", cfg.Name)),
		clock:  clk,
		state:  StateClosed,
	}
}

// Name returns the resource name this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Config returns the breaker configuration.
func (cb *CircuitBreaker) Config() Config {
	return cb.config
}

// Allow decides whether a call may proceed.
//
// Closed: always permits. Open: permits only once the recovery timeout has
// elapsed since the last failure, transitioning to HalfOpen and claiming the
// probe slot. HalfOpen: permits only if no probe is currently in flight.
// On rejection it returns an error wrapping ErrOpen; the caller must not
// invoke the protected operation.
//
// Every permitted call must be concluded by exactly one OnSuccess, OnFailure,
// or OnTimeout so the HalfOpen probe slot is released.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.totalCalls++
		cb.mu.Unlock()
		return nil

	case StateOpen:
		if cb.clock.Now().Sub(cb.lastFailureTime) < cb.config.RecoveryTimeout {
			cb.totalRejections++
			cb.mu.Unlock()
			return fmt.Errorf("circuit %q: %w", cb.name, ErrOpen)
		}
		// Cooldown elapsed: this caller becomes the probe.
		t := cb.setState(StateHalfOpen)
		cb.probeInFlight = true
		cb.totalCalls++
		fn := cb.onStateChange
		cb.mu.Unlock()
		cb.fire(fn, t)
		return nil

	default: // StateHalfOpen
		if cb.probeInFlight {
			cb.totalRejections++
			cb.mu.Unlock()
			return fmt.Errorf("circuit %q: probe in flight: %w", cb.name, ErrOpen)
		}
		cb.probeInFlight = true
		cb.totalCalls++
		cb.mu.Unlock()
		return nil
	}
}

// OnSuccess records a successful call.
// In HalfOpen, reaching SuccessThreshold consecutive successes closes the
// breaker and resets the consecutive counters.
func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()

	cb.totalSuccesses++
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses++
	cb.lastSuccessTime = cb.clock.Now()
	cb.probeInFlight = false

	var t transition
	if cb.state == StateHalfOpen && cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
		t = cb.setState(StateClosed)
		cb.consecutiveSuccesses = 0
	}
	fn := cb.onStateChange
	cb.mu.Unlock()
	cb.fire(fn, t)
}

// OnFailure records a failed call.
// Closed trips to Open at FailureThreshold consecutive failures; any single
// failure in HalfOpen re-opens immediately.
func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	t := cb.recordFailure()
	fn := cb.onStateChange
	cb.mu.Unlock()
	cb.fire(fn, t)
}

// OnTimeout records a call that exceeded the configured call timeout.
// Timeouts count as failures and are additionally tracked in their own
// counter.
func (cb *CircuitBreaker) OnTimeout() {
	cb.mu.Lock()
	cb.totalTimeouts++
	t := cb.recordFailure()
	fn := cb.onStateChange
	cb.mu.Unlock()
	cb.fire(fn, t)
}

func (cb *CircuitBreaker) recordFailure() transition {
	cb.totalFailures++
	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures++
	cb.lastFailureTime = cb.clock.Now()
	cb.probeInFlight = false

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			return cb.setState(StateOpen)
		}
	case StateHalfOpen:
		return cb.setState(StateOpen)
	}
	// Open stays Open; the failure timestamp above restarts the cooldown.
	return transition{}
}

// Reset forces the breaker back to Closed and zeroes the consecutive
// counters. Lifetime totals are preserved; this is an administrative
// operation, not a statistics wipe.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	t := cb.setState(StateClosed)
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.probeInFlight = false
	cb.lastFailureTime = time.Time{}
	fn := cb.onStateChange
	cb.mu.Unlock()

	cb.fire(fn, t)
	cb.logger.Info("circuit breaker manually reset")
}

// ForceOpen manually trips the breaker, e.g. to fence off a dependency
// during an incident. The cooldown starts from now.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()
	cb.lastFailureTime = cb.clock.Now()
	t := cb.setState(StateOpen)
	fn := cb.onStateChange
	cb.mu.Unlock()

	cb.fire(fn, t)
	cb.logger.Info("circuit breaker manually opened")
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Stats{
		Name:                 cb.name,
		State:                cb.state.String(),
		TotalCalls:           cb.totalCalls,
		TotalSuccesses:       cb.totalSuccesses,
		TotalFailures:        cb.totalFailures,
		TotalRejections:      cb.totalRejections,
		TotalTimeouts:        cb.totalTimeouts,
		OpenedCount:          cb.openedCount,
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
	}
	if cb.totalCalls > 0 {
		s.SuccessRate = float64(cb.totalSuccesses) / float64(cb.totalCalls) * 100
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		s.LastFailureTime = &t
	}
	if !cb.lastSuccessTime.IsZero() {
		t := cb.lastSuccessTime
		s.LastSuccessTime = &t
	}
	return s
}

// transition captures a completed state change so the callback can fire
// once the breaker lock is released.
type transition struct {
	from, to State
	changed  bool
}

// setState transitions the breaker and returns the transition for the
// caller to report via fire. Must be called with cb.mu held.
func (cb *CircuitBreaker) setState(to State) transition {
	if cb.state == to {
		return transition{}
	}
	from := cb.state
	cb.state = to

	if to == StateOpen {
		cb.openedCount++
	}
	if to == StateHalfOpen {
		cb.consecutiveSuccesses = 0
	}

	cb.logger.Warn("circuit breaker state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("consecutive_failures", cb.consecutiveFailures))

	return transition{from: from, to: to, changed: true}
}

// fire reports a completed transition to the state-change callback.
// Must be called without cb.mu held.
func (cb *CircuitBreaker) fire(fn func(name string, from, to State), t transition) {
	if t.changed && fn != nil {
		fn(cb.name, t.from, t.to)
	}
}
