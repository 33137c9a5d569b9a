package circuitbreaker

import "time"

// Config holds the configuration for a circuit breaker.
// The zero value is not usable directly; New fills in defaults.
type Config struct {
	// Name is the resource name, used as the registry key and in logs.
	Name string

	// FailureThreshold is the number of consecutive failures before the
	// breaker opens.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before a probing
	// call is allowed.
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of consecutive successes in half-open
	// required to close the breaker.
	SuccessThreshold int

	// CallTimeout is the maximum duration allowed for the protected
	// operation. Enforced by the protected-call wrapper, not the breaker.
	CallTimeout time.Duration

	// FailureStatusCodes is the set of HTTP response codes treated as
	// breaker failures when the operation exposes one. Codes outside the
	// set still fail the call but do not trip the breaker.
	FailureStatusCodes map[int]bool
}

// DefaultFailureStatusCodes returns the response codes counted as breaker
// failures by default: rate limiting and server-side errors.
func DefaultFailureStatusCodes() map[int]bool {
	return map[int]bool{
		429: true,
		500: true,
		502: true,
		503: true,
		504: true,
	}
}

// DefaultConfig returns a default configuration for the named resource.
func DefaultConfig(name string) Config {
	return Config{
		Name:               name,
		FailureThreshold:   5,
		RecoveryTimeout:    60 * time.Second,
		SuccessThreshold:   3,
		CallTimeout:        30 * time.Second,
		FailureStatusCodes: DefaultFailureStatusCodes(),
	}
}

// NewsAPIConfig returns configuration optimized for news-source API calls.
// Generous threshold since feed endpoints fail transiently quite often.
func NewsAPIConfig() Config {
	return Config{
		Name:               "news-api",
		FailureThreshold:   5,
		RecoveryTimeout:    120 * time.Second,
		SuccessThreshold:   3,
		CallTimeout:        30 * time.Second,
		FailureStatusCodes: DefaultFailureStatusCodes(),
	}
}

// ContentAPIConfig returns configuration optimized for content-generation
// API calls. Conservative: generation calls are slow and billed per request.
func ContentAPIConfig() Config {
	return Config{
		Name:               "content-api",
		FailureThreshold:   3,
		RecoveryTimeout:    60 * time.Second,
		SuccessThreshold:   2,
		CallTimeout:        60 * time.Second,
		FailureStatusCodes: DefaultFailureStatusCodes(),
	}
}

// SocialPostConfig returns configuration optimized for social-posting API
// calls, where 429s dominate and recovery tends to be quick.
func SocialPostConfig() Config {
	return Config{
		Name:               "social-post",
		FailureThreshold:   4,
		RecoveryTimeout:    90 * time.Second,
		SuccessThreshold:   2,
		CallTimeout:        15 * time.Second,
		FailureStatusCodes: DefaultFailureStatusCodes(),
	}
}

// applyDefaults replaces zero fields with the default configuration values.
func (c *Config) applyDefaults() {
	def := DefaultConfig(c.Name)
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.FailureStatusCodes == nil {
		c.FailureStatusCodes = def.FailureStatusCodes
	}
}
