package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadResilienceConfig_Defaults(t *testing.T) {
	cfg, err := LoadResilienceConfig(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, DefaultHistoryCapacity, cfg.HistoryCapacity)
	assert.Equal(t, DefaultAlertThreshold, cfg.AlertThreshold)
	assert.Equal(t, DefaultMaxReinvocations, cfg.MaxReinvocations)
	assert.Equal(t, Duration(DefaultRetryBaseDelay), cfg.Retry.BaseDelay)
	assert.Empty(t, cfg.Resources)
}

func TestLoadResilienceConfig_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
history_capacity: 500
alert_threshold: 3
retry:
  max_attempts: 5
  base_delay: 2s
  max_delay: 30s
alert:
  webhook_url: https://hooks.example.com/alerts
  rate_per_minute: 10
  burst: 2
resources:
  news-api:
    failure_threshold: 3
    recovery_timeout: 60s
    success_threshold: 2
    call_timeout: 10s
    failure_status_codes: [429, 500, 502, 503, 504]
  content-api:
    failure_threshold: 5
`)
	t.Setenv("RESILIENCE_CONFIG", path)

	cfg, err := LoadResilienceConfig(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.HistoryCapacity)
	assert.Equal(t, 3, cfg.AlertThreshold)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, Duration(2*time.Second), cfg.Retry.BaseDelay)
	assert.Equal(t, "https://hooks.example.com/alerts", cfg.Alert.WebhookURL)

	require.Contains(t, cfg.Resources, "news-api")
	news := cfg.Resources["news-api"]
	assert.Equal(t, 3, news.FailureThreshold)
	assert.Equal(t, Duration(60*time.Second), news.RecoveryTimeout)
	assert.Equal(t, 2, news.SuccessThreshold)
	assert.ElementsMatch(t, []int{429, 500, 502, 503, 504}, news.FailureStatusCodes)
}

func TestLoadResilienceConfig_MissingFile(t *testing.T) {
	t.Setenv("RESILIENCE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadResilienceConfig(discardLogger())
	assert.Error(t, err)
}

func TestLoadResilienceConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "resources: [not a map")
	t.Setenv("RESILIENCE_CONFIG", path)

	_, err := LoadResilienceConfig(discardLogger())
	assert.Error(t, err)
}

func TestLoadResilienceConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ERROR_HISTORY_CAPACITY", "250")
	t.Setenv("RETRY_BASE_DELAY", "500ms")

	cfg, err := LoadResilienceConfig(discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.HistoryCapacity)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Retry.BaseDelay)
}

func TestLoadResilienceConfig_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("ERROR_ALERT_THRESHOLD", "-1")

	cfg, err := LoadResilienceConfig(discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultAlertThreshold, cfg.AlertThreshold)
}

func TestResilienceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ResilienceConfig)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *ResilienceConfig) {},
		},
		{
			name:    "zero history capacity",
			mutate:  func(c *ResilienceConfig) { c.HistoryCapacity = 0 },
			wantErr: true,
		},
		{
			name: "base delay above max delay",
			mutate: func(c *ResilienceConfig) {
				c.Retry.BaseDelay = Duration(2 * time.Minute)
				c.Retry.MaxDelay = Duration(1 * time.Minute)
			},
			wantErr: true,
		},
		{
			name:    "bad webhook URL",
			mutate:  func(c *ResilienceConfig) { c.Alert.WebhookURL = "not a url" },
			wantErr: true,
		},
		{
			name: "bad status code",
			mutate: func(c *ResilienceConfig) {
				c.Resources = map[string]ResourceSettings{
					"news-api": {FailureStatusCodes: []int{999}},
				}
			},
			wantErr: true,
		},
		{
			name: "negative threshold",
			mutate: func(c *ResilienceConfig) {
				c.Resources = map[string]ResourceSettings{
					"news-api": {FailureThreshold: -1},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultResilienceConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBreakerConfigs(t *testing.T) {
	cfg := DefaultResilienceConfig()
	cfg.Resources = map[string]ResourceSettings{
		"news-api": {
			FailureThreshold:   3,
			RecoveryTimeout:    Duration(time.Minute),
			SuccessThreshold:   2,
			CallTimeout:        Duration(10 * time.Second),
			FailureStatusCodes: []int{500, 503},
		},
	}

	breakers := cfg.BreakerConfigs()
	require.Contains(t, breakers, "news-api")

	bc := breakers["news-api"]
	assert.Equal(t, "news-api", bc.Name)
	assert.Equal(t, 3, bc.FailureThreshold)
	assert.Equal(t, time.Minute, bc.RecoveryTimeout)
	assert.True(t, bc.FailureStatusCodes[500])
	assert.True(t, bc.FailureStatusCodes[503])
	assert.False(t, bc.FailureStatusCodes[429])
}
