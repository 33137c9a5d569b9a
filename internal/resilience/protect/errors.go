package protect

import (
	"fmt"
	"time"

	"newsbot-resilience/internal/resilience/circuitbreaker"
	"newsbot-resilience/internal/resilience/errhandler"
)

// CircuitOpenError reports a call rejected by an open circuit breaker.
// The protected operation was never invoked.
type CircuitOpenError struct {
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("protected call to %q rejected: circuit open", e.Resource)
}

// Unwrap exposes the underlying circuitbreaker.ErrOpen for errors.Is.
func (e *CircuitOpenError) Unwrap() error { return e.Err }

// IsCircuitOpen reports whether err is a circuit-open rejection.
func IsCircuitOpen(err error) bool {
	return circuitbreaker.IsOpen(err)
}

// TimeoutError reports an operation that exceeded the configured call
// timeout. The operation may still be running; abandonment is best effort.
type TimeoutError struct {
	Resource string
	Timeout  time.Duration
	Err      error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("protected call to %q timed out after %s", e.Resource, e.Timeout)
}

// Unwrap exposes the underlying context error.
func (e *TimeoutError) Unwrap() error { return e.Err }

// OperationError reports a failure of the wrapped operation itself, carrying
// the original error and its handler record.
type OperationError struct {
	Resource string
	Err      error
	Record   *errhandler.Record
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("protected call to %q failed: %v", e.Resource, e.Err)
}

// Unwrap exposes the original operation error.
func (e *OperationError) Unwrap() error { return e.Err }

// RecoveryExhaustedError reports that recovery was attempted but every
// applicable strategy (and the re-invocation budget) was exhausted without
// the operation succeeding.
type RecoveryExhaustedError struct {
	Resource string
	Attempts int
	Err      error
	Record   *errhandler.Record
}

// Error implements the error interface.
func (e *RecoveryExhaustedError) Error() string {
	return fmt.Sprintf("protected call to %q failed after %d attempts, recovery exhausted: %v",
		e.Resource, e.Attempts, e.Err)
}

// Unwrap exposes the last operation error.
func (e *RecoveryExhaustedError) Unwrap() error { return e.Err }
