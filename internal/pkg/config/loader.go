// Package config loads and validates configuration for the resilience
// core. Scalar settings come from environment variables with validated
// fallback to defaults; per-resource circuit breaker settings come from an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"
)

// ConfigLoadResult represents the result of loading a configuration value.
// Loading never fails: invalid values fall back to the default and produce
// a warning instead of an error, so a single bad variable cannot prevent
// startup.
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString loads a string value from an environment variable.
// If the variable is not set, the default value is returned. No validation
// is performed.
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvDuration loads a duration from an environment variable with
// parsing, optional validation, and fallback to the default on failure.
// The value must be parseable by time.ParseDuration ("30s", "5m", "1h30m").
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallbackResult(envKey, valueStr, defaultValue, err)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackResult(envKey, valueStr, defaultValue, err)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvInt loads an integer from an environment variable with parsing,
// optional validation, and fallback to the default on failure.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	var parsed int
	if _, err := fmt.Sscanf(valueStr, "%d", &parsed); err != nil {
		return fallbackResult(envKey, valueStr, defaultValue, fmt.Errorf("invalid integer format"))
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackResult(envKey, valueStr, defaultValue, err)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvBool loads a boolean from an environment variable, accepting the
// usual spellings ("1"/"0", "true"/"false", "t"/"f" in any case), with
// fallback to the default on anything else.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	switch valueStr {
	case "1", "t", "T", "true", "TRUE", "True":
		return ConfigLoadResult{Value: true}
	case "0", "f", "F", "false", "FALSE", "False":
		return ConfigLoadResult{Value: false}
	default:
		return fallbackResult(envKey, valueStr, defaultValue,
			fmt.Errorf("invalid boolean format, expected 'true' or 'false'"))
	}
}

func fallbackResult(envKey, raw string, defaultValue interface{}, err error) ConfigLoadResult {
	warning := fmt.Sprintf(
		"Invalid %s='%s': %v, falling back to default '%v'",
		envKey, raw, err, defaultValue,
	)
	return ConfigLoadResult{
		Value:           defaultValue,
		Warnings:        []string{warning},
		FallbackApplied: true,
	}
}
