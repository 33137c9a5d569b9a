package recovery

import (
	"context"
	"errors"
	"log/slog"

	"newsbot-resilience/internal/resilience/errclass"
	"newsbot-resilience/internal/resilience/errhandler"
)

// DefaultAuthMaxAttempts caps authentication recovery attempts. The cap is
// deliberately small: hammering a rejecting endpoint with fresh credentials
// risks account lockout.
const DefaultAuthMaxAttempts = 2

// InvalidateFunc clears cached session or token state for a component.
// Session storage belongs to the external collaborator, so the concrete
// invalidation is supplied by the caller.
type InvalidateFunc func(component string) error

// AuthStrategy recovers from authentication failures by invalidating the
// cached session for the failing component so the next call
// re-authenticates from scratch.
type AuthStrategy struct {
	invalidate  InvalidateFunc
	maxAttempts int
	logger      *slog.Logger
}

// NewAuthStrategy creates an authentication recovery strategy.
// maxAttempts <= 0 takes DefaultAuthMaxAttempts. A nil invalidate function
// makes Recover a no-op sanction (the caller still re-authenticates on
// retry).
func NewAuthStrategy(invalidate InvalidateFunc, maxAttempts int) *AuthStrategy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAuthMaxAttempts
	}
	return &AuthStrategy{
		invalidate:  invalidate,
		maxAttempts: maxAttempts,
		logger:      slog.Default(),
	}
}

// Name implements errhandler.Strategy.
func (s *AuthStrategy) Name() string { return "auth_recovery" }

// CanRecover reports whether the failure is authentication-related: the
// Authentication category or a 401/403-equivalent rejection.
func (s *AuthStrategy) CanRecover(err error, ectx *errhandler.Context) bool {
	category, _ := errclass.Classify(err)
	if category == errclass.CategoryAuthentication {
		return true
	}
	var httpErr *errclass.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 401 || httpErr.StatusCode == 403
	}
	return false
}

// Recover invalidates the cached session for the failing component and
// sanctions a retry, up to the configured cap.
func (s *AuthStrategy) Recover(ctx context.Context, err error, ectx *errhandler.Context, attempt int) (bool, error) {
	if attempt > s.maxAttempts {
		return false, nil
	}

	s.logger.Info("invalidating cached session",
		slog.String("component", ectx.Component),
		slog.Int("attempt", attempt))

	if s.invalidate != nil {
		if ierr := s.invalidate(ectx.Component); ierr != nil {
			return false, ierr
		}
	}
	return true, nil
}
