package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"newsbot-resilience/internal/resilience/circuitbreaker"
)

// Default values for the resilience configuration.
const (
	DefaultHistoryCapacity  = 1000
	DefaultAlertThreshold   = 5
	DefaultMaxReinvocations = 3
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = 1 * time.Second
	DefaultRetryMaxDelay    = 60 * time.Second
	DefaultAlertRatePerMin  = 6.0
	DefaultAlertBurst       = 3
)

// Duration wraps time.Duration so YAML values can be written as duration
// strings ("60s", "2m"). yaml.v3 has no native duration support.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ResourceSettings configures the circuit breaker for one named resource.
// Zero fields take the breaker defaults.
type ResourceSettings struct {
	FailureThreshold   int      `yaml:"failure_threshold"`
	RecoveryTimeout    Duration `yaml:"recovery_timeout"`
	SuccessThreshold   int      `yaml:"success_threshold"`
	CallTimeout        Duration `yaml:"call_timeout"`
	FailureStatusCodes []int    `yaml:"failure_status_codes"`
}

// RetrySettings configures the retry recovery strategy.
type RetrySettings struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

// AlertSettings configures alert delivery.
type AlertSettings struct {
	WebhookURL string   `yaml:"webhook_url"`
	Timeout    Duration `yaml:"timeout"`
	RatePerMin float64  `yaml:"rate_per_minute"`
	Burst      int      `yaml:"burst"`
}

// ResilienceConfig is the full configuration of the resilience core.
type ResilienceConfig struct {
	HistoryCapacity  int                         `yaml:"history_capacity"`
	AlertThreshold   int                         `yaml:"alert_threshold"`
	MaxReinvocations int                         `yaml:"max_reinvocations"`
	Retry            RetrySettings               `yaml:"retry"`
	Alert            AlertSettings               `yaml:"alert"`
	Resources        map[string]ResourceSettings `yaml:"resources"`
}

// DefaultResilienceConfig returns the configuration used when no file is
// provided.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		HistoryCapacity:  DefaultHistoryCapacity,
		AlertThreshold:   DefaultAlertThreshold,
		MaxReinvocations: DefaultMaxReinvocations,
		Retry: RetrySettings{
			MaxAttempts: DefaultRetryMaxAttempts,
			BaseDelay:   Duration(DefaultRetryBaseDelay),
			MaxDelay:    Duration(DefaultRetryMaxDelay),
		},
		Alert: AlertSettings{
			RatePerMin: DefaultAlertRatePerMin,
			Burst:      DefaultAlertBurst,
		},
	}
}

// LoadResilienceConfig loads the resilience configuration.
//
// The file path comes from the RESILIENCE_CONFIG environment variable; when
// it is unset the defaults are returned. A missing or invalid file is an
// error: unlike scalar environment overrides, a broken resource
// configuration silently replaced by defaults would change breaker behavior
// in ways that are hard to notice.
func LoadResilienceConfig(logger *slog.Logger) (ResilienceConfig, error) {
	cfg := DefaultResilienceConfig()

	path := LoadEnvString("RESILIENCE_CONFIG", "")
	if path == "" {
		applyEnvOverrides(&cfg, logger)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ResilienceConfig{}, fmt.Errorf("read resilience config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ResilienceConfig{}, fmt.Errorf("parse resilience config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg, logger)

	if err := cfg.Validate(); err != nil {
		return ResilienceConfig{}, fmt.Errorf("resilience config %s: %w", path, err)
	}

	logger.Info("resilience config loaded",
		slog.String("path", path),
		slog.Int("resources", len(cfg.Resources)))
	return cfg, nil
}

// applyEnvOverrides overlays scalar environment variables on top of the
// file or default configuration. Invalid values warn and keep the current
// setting.
func applyEnvOverrides(cfg *ResilienceConfig, logger *slog.Logger) {
	overrides := []struct {
		result ConfigLoadResult
		field  string
		apply  func(v interface{})
	}{
		{
			result: LoadEnvInt("ERROR_HISTORY_CAPACITY", cfg.HistoryCapacity, ValidatePositiveInt),
			field:  "history_capacity",
			apply:  func(v interface{}) { cfg.HistoryCapacity = v.(int) },
		},
		{
			result: LoadEnvInt("ERROR_ALERT_THRESHOLD", cfg.AlertThreshold, ValidatePositiveInt),
			field:  "alert_threshold",
			apply:  func(v interface{}) { cfg.AlertThreshold = v.(int) },
		},
		{
			result: LoadEnvInt("MAX_REINVOCATIONS", cfg.MaxReinvocations, ValidatePositiveInt),
			field:  "max_reinvocations",
			apply:  func(v interface{}) { cfg.MaxReinvocations = v.(int) },
		},
		{
			result: LoadEnvInt("RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts, ValidateIntRange(1, 10)),
			field:  "retry.max_attempts",
			apply:  func(v interface{}) { cfg.Retry.MaxAttempts = v.(int) },
		},
		{
			result: LoadEnvDuration("RETRY_BASE_DELAY", cfg.Retry.BaseDelay.Std(), ValidatePositiveDuration),
			field:  "retry.base_delay",
			apply:  func(v interface{}) { cfg.Retry.BaseDelay = Duration(v.(time.Duration)) },
		},
		{
			result: LoadEnvDuration("RETRY_MAX_DELAY", cfg.Retry.MaxDelay.Std(), ValidatePositiveDuration),
			field:  "retry.max_delay",
			apply:  func(v interface{}) { cfg.Retry.MaxDelay = Duration(v.(time.Duration)) },
		},
	}

	for _, o := range overrides {
		if o.result.FallbackApplied {
			Metrics.RecordFallback(o.field)
			for _, w := range o.result.Warnings {
				logger.Warn("configuration fallback", slog.String("warning", w))
			}
		}
		o.apply(o.result.Value)
	}

	if url := LoadEnvString("ALERT_WEBHOOK_URL", cfg.Alert.WebhookURL); url != "" {
		cfg.Alert.WebhookURL = url
	}

	Metrics.RecordLoadTimestamp()
}

// Validate checks the configuration for values that would misbehave at
// runtime.
func (c ResilienceConfig) Validate() error {
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity)
	}
	if c.AlertThreshold <= 0 {
		return fmt.Errorf("alert_threshold must be positive, got %d", c.AlertThreshold)
	}
	if c.MaxReinvocations <= 0 {
		return fmt.Errorf("max_reinvocations must be positive, got %d", c.MaxReinvocations)
	}
	if c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("retry.base_delay %v exceeds retry.max_delay %v",
			c.Retry.BaseDelay.Std(), c.Retry.MaxDelay.Std())
	}
	if c.Alert.WebhookURL != "" {
		if err := ValidateHTTPURL(c.Alert.WebhookURL); err != nil {
			return fmt.Errorf("alert.webhook_url: %w", err)
		}
	}
	for name, res := range c.Resources {
		if res.FailureThreshold < 0 || res.SuccessThreshold < 0 {
			return fmt.Errorf("resource %q: thresholds must not be negative", name)
		}
		if res.RecoveryTimeout < 0 || res.CallTimeout < 0 {
			return fmt.Errorf("resource %q: timeouts must not be negative", name)
		}
		for _, code := range res.FailureStatusCodes {
			if code < 100 || code > 599 {
				return fmt.Errorf("resource %q: invalid status code %d", name, code)
			}
		}
	}
	return nil
}

// BreakerConfigs converts the per-resource settings into circuit breaker
// configurations keyed by resource name.
func (c ResilienceConfig) BreakerConfigs() map[string]circuitbreaker.Config {
	out := make(map[string]circuitbreaker.Config, len(c.Resources))
	for name, res := range c.Resources {
		cfg := circuitbreaker.Config{
			Name:             name,
			FailureThreshold: res.FailureThreshold,
			RecoveryTimeout:  res.RecoveryTimeout.Std(),
			SuccessThreshold: res.SuccessThreshold,
			CallTimeout:      res.CallTimeout.Std(),
		}
		if len(res.FailureStatusCodes) > 0 {
			cfg.FailureStatusCodes = make(map[int]bool, len(res.FailureStatusCodes))
			for _, code := range res.FailureStatusCodes {
				cfg.FailureStatusCodes[code] = true
			}
		}
		out[name] = cfg
	}
	return out
}
