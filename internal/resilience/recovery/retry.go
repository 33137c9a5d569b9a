// Package recovery implements the recovery strategies consulted by the
// error handler: delay-and-retry with exponential backoff, cached-session
// invalidation for authentication failures, and single-shot configuration
// reload. Strategies are stateless aside from their own configuration and
// answer the capability pair CanRecover/Recover.
package recovery

import (
	"context"
	"log/slog"
	"time"

	"newsbot-resilience/internal/resilience/errclass"
	"newsbot-resilience/internal/resilience/errhandler"
)

// RetryConfig holds the configuration for the retry strategy.
type RetryConfig struct {
	// MaxAttempts is the maximum number of sanctioned retries.
	MaxAttempts int

	// BaseDelay is the backoff delay for the first attempt.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// RetryStrategy sanctions retries for transient failures after an
// exponential backoff delay. The delay blocks only the calling goroutine
// and aborts promptly on context cancellation.
type RetryStrategy struct {
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetryStrategy creates a retry strategy. Zero config fields take the
// defaults.
func NewRetryStrategy(cfg RetryConfig) *RetryStrategy {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &RetryStrategy{cfg: cfg, logger: slog.Default()}
}

// Name implements errhandler.Strategy.
func (s *RetryStrategy) Name() string { return "retry" }

// CanRecover reports whether the failure is transient: network failures,
// timeouts, and retryable HTTP status codes (429, 408, 5xx).
func (s *RetryStrategy) CanRecover(err error, ectx *errhandler.Context) bool {
	return errclass.IsRetryable(err)
}

// Recover sanctions a retry after the backoff delay for this attempt, or
// returns false once attempts are exhausted. A canceled context aborts the
// delay and surfaces the context error.
func (s *RetryStrategy) Recover(ctx context.Context, err error, ectx *errhandler.Context, attempt int) (bool, error) {
	if attempt > s.cfg.MaxAttempts {
		return false, nil
	}

	delay := s.Delay(attempt)
	s.logger.Info("retrying after backoff",
		slog.String("operation", ectx.Operation),
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", s.cfg.MaxAttempts),
		slog.Duration("delay", delay))

	select {
	case <-time.After(delay):
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Delay returns the backoff delay for a 1-based attempt:
// min(BaseDelay * 2^(attempt-1), MaxDelay).
func (s *RetryStrategy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	if delay > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return delay
}
