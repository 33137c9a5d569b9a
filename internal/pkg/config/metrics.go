package config

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics tracks configuration loading behavior: when configuration
// was last loaded and which fields fell back to defaults. A nonzero
// fallback counter after a deploy usually means a typo in the environment.
type ConfigMetrics struct {
	LoadTimestamp  prometheus.Gauge
	FallbacksTotal *prometheus.CounterVec
}

// Metrics is the process-wide configuration metrics instance.
var Metrics = newConfigMetrics()

func newConfigMetrics() *ConfigMetrics {
	return &ConfigMetrics{
		LoadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "resilience_config_load_timestamp",
			Help: "Unix timestamp of the last configuration load",
		}),
		FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_config_fallbacks_total",
			Help: "Total configuration values that fell back to defaults",
		}, []string{"field"}),
	}
}

// RecordLoadTimestamp marks the current time as the last configuration load.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.Set(float64(time.Now().Unix()))
}

// RecordFallback counts a fallback to the default value for a field.
func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}
