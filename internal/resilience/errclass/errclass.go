// Package errclass classifies failures from external calls into a category
// and severity pair used by the error handler and recovery strategies.
// Classification is deterministic and side-effect free: it inspects only the
// error's type and message against static lookup tables.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Category identifies the kind of failure.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryAPI
	CategoryAuthentication
	CategoryNetwork
	CategoryTimeout
	CategoryValidation
	CategoryConfiguration
	CategorySystem
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryAPI:
		return "api_error"
	case CategoryAuthentication:
		return "authentication_error"
	case CategoryNetwork:
		return "network_error"
	case CategoryTimeout:
		return "timeout_error"
	case CategoryValidation:
		return "validation_error"
	case CategoryConfiguration:
		return "configuration_error"
	case CategorySystem:
		return "system_error"
	default:
		return "unknown_error"
	}
}

// Severity ranks how serious a failure is. Values are ordered so that
// comparisons like sev >= SeverityHigh express alerting thresholds.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// HTTPError represents a failed HTTP-level call with its status code.
// It is shared by the classifier, the circuit breaker failure-code check,
// and the retry strategy so all three agree on what a status code means.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// messagePatterns maps lowercase substrings of an error message to a
// category. Ordering matters: earlier entries win, so the more specific
// markers come first.
var messagePatterns = []struct {
	marker   string
	category Category
}{
	// Timeout markers before network: "connection timeout" is a timeout.
	{"timeout", CategoryTimeout},
	{"timed out", CategoryTimeout},
	{"deadline", CategoryTimeout},

	// Authentication markers before generic API markers.
	{"unauthorized", CategoryAuthentication},
	{"forbidden", CategoryAuthentication},
	{"credential", CategoryAuthentication},
	{"token", CategoryAuthentication},
	{"auth", CategoryAuthentication},
	{"session", CategoryAuthentication},

	{"connection", CategoryNetwork},
	{"network", CategoryNetwork},
	{"socket", CategoryNetwork},
	{"dns", CategoryNetwork},
	{"no such host", CategoryNetwork},

	{"validation", CategoryValidation},
	{"malformed", CategoryValidation},
	{"format", CategoryValidation},

	{"config", CategoryConfiguration},
	{"setting", CategoryConfiguration},
	{"environment", CategoryConfiguration},
	{"missing", CategoryConfiguration},

	{"out of memory", CategorySystem},
	{"memory", CategorySystem},
	{"disk", CategorySystem},
	{"permission", CategorySystem},
	{"system", CategorySystem},

	{"http", CategoryAPI},
	{"api", CategoryAPI},
	{"request", CategoryAPI},
	{"response", CategoryAPI},
	{"rate limit", CategoryAPI},

	// Generic validation marker last: "invalid" appears in many messages.
	{"invalid", CategoryValidation},
}

// criticalMarkers elevate severity to Critical when present in the message.
// These indicate process-threatening conditions rather than a failed call.
var criticalMarkers = []string{
	"out of memory",
	"cannot allocate memory",
	"panic",
	"fatal",
}

// Classify maps a failure to its (Category, Severity) pair.
//
// Typed inspection runs first (context deadline, net.Error, syscall errnos,
// HTTPError status codes), then the message pattern table. The result is
// identical for identical inputs across calls.
func Classify(err error) (Category, Severity) {
	if err == nil {
		return CategoryUnknown, SeverityLow
	}

	category := classifyTyped(err)
	if category == CategoryUnknown {
		category = classifyMessage(err.Error())
	}

	return category, severityFor(category, err.Error())
}

// classifyTyped classifies by error type where the type alone is conclusive.
func classifyTyped(err error) Category {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return CategoryNetwork
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return CategoryAuthentication
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return CategoryValidation
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return CategoryTimeout
		default:
			return CategoryAPI
		}
	}

	return CategoryUnknown
}

// classifyMessage classifies by lowercase substring matching against the
// static pattern table.
func classifyMessage(msg string) Category {
	lower := strings.ToLower(msg)
	for _, p := range messagePatterns {
		if strings.Contains(lower, p.marker) {
			return p.category
		}
	}
	return CategoryUnknown
}

// severityFor applies the category-to-default-severity table, elevating to
// Critical when the message carries a process-threatening marker.
func severityFor(category Category, msg string) Severity {
	lower := strings.ToLower(msg)
	for _, marker := range criticalMarkers {
		if strings.Contains(lower, marker) {
			return SeverityCritical
		}
	}

	switch category {
	case CategorySystem, CategoryConfiguration:
		return SeverityHigh
	case CategoryAPI, CategoryAuthentication:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsRetryable reports whether a failure is transient enough that retrying
// the operation may succeed: network failures, timeouts, and the retryable
// subset of HTTP status codes (429, 408, 5xx).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation is a caller decision, never retried.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		return httpErr.StatusCode == http.StatusTooManyRequests ||
			httpErr.StatusCode == http.StatusRequestTimeout
	}

	category, _ := Classify(err)
	return category == CategoryNetwork || category == CategoryTimeout
}
