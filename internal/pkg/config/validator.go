package config

import (
	"fmt"
	"net/url"
	"time"
)

// ValidatePositiveDuration validates that a duration is strictly positive.
// Zero and negative durations are rejected; both usually indicate a typo
// rather than an intentional "disabled" setting.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}

// ValidateDurationRange returns a validator that checks a duration lies
// within [min, max] inclusive.
func ValidateDurationRange(min, max time.Duration) func(time.Duration) error {
	return func(duration time.Duration) error {
		if duration < min || duration > max {
			return fmt.Errorf("duration must be between %v and %v, got %v", min, max, duration)
		}
		return nil
	}
}

// ValidatePositiveInt validates that an integer is strictly positive.
func ValidatePositiveInt(value int) error {
	if value <= 0 {
		return fmt.Errorf("value must be positive, got %d", value)
	}
	return nil
}

// ValidateIntRange returns a validator that checks an integer lies within
// [min, max] inclusive.
func ValidateIntRange(min, max int) func(int) error {
	return func(value int) error {
		if value < min || value > max {
			return fmt.Errorf("value must be between %d and %d, got %d", min, max, value)
		}
		return nil
	}
}

// ValidateHTTPURL validates that a string is an absolute http or https URL.
// Used for the alert webhook endpoint.
func ValidateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}
