package recovery

import (
	"context"
	"log/slog"

	"newsbot-resilience/internal/resilience/errclass"
	"newsbot-resilience/internal/resilience/errhandler"
)

// ReloadFunc reloads configuration from its source. Supplied by the caller
// since configuration loading belongs to the host process.
type ReloadFunc func(ctx context.Context) error

// ConfigStrategy recovers from configuration failures by triggering one
// configuration reload. It is deliberately single-shot per failure: a
// persistently bad configuration must not produce an infinite reload loop.
type ConfigStrategy struct {
	reload ReloadFunc
	logger *slog.Logger
}

// NewConfigStrategy creates a configuration recovery strategy.
func NewConfigStrategy(reload ReloadFunc) *ConfigStrategy {
	return &ConfigStrategy{
		reload: reload,
		logger: slog.Default(),
	}
}

// Name implements errhandler.Strategy.
func (s *ConfigStrategy) Name() string { return "config_recovery" }

// CanRecover reports whether the failure is configuration-related.
func (s *ConfigStrategy) CanRecover(err error, ectx *errhandler.Context) bool {
	category, _ := errclass.Classify(err)
	return category == errclass.CategoryConfiguration
}

// Recover triggers the reload callback on the first attempt only.
// Any later attempt returns false.
func (s *ConfigStrategy) Recover(ctx context.Context, err error, ectx *errhandler.Context, attempt int) (bool, error) {
	if attempt > 1 {
		return false, nil
	}
	if s.reload == nil {
		return false, nil
	}

	s.logger.Info("reloading configuration",
		slog.String("component", ectx.Component))

	if rerr := s.reload(ctx); rerr != nil {
		return false, rerr
	}
	return true, nil
}
