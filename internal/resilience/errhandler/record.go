package errhandler

import (
	"time"

	"github.com/google/uuid"

	"newsbot-resilience/internal/resilience/errclass"
)

// Context carries call-site information about where a failure occurred.
// It is supplied by the caller and treated as immutable once created.
type Context struct {
	// Component is the subsystem making the call (e.g. "news_fetcher").
	Component string

	// Operation is the specific operation that failed.
	Operation string

	// Attempt is the 1-based invocation count for the original call,
	// incremented by the wrapper across recovery-driven re-invocations.
	Attempt int

	// Metadata carries optional free-form details.
	Metadata map[string]any
}

// NewContext creates a Context for the first attempt of an operation.
func NewContext(component, operation string) Context {
	return Context{
		Component: component,
		Operation: operation,
		Attempt:   1,
	}
}

// Record is the structured record of one observed failure.
// The handler owns every record; only the recovery phase of the same
// HandleError call mutates the Recovered/RecoveryAttempts fields.
// RecoveryAttempts is the number of strategies invoked for this failure,
// not the call-site invocation counter.
type Record struct {
	ID               string            `json:"id"`
	Timestamp        time.Time         `json:"timestamp"`
	Category         errclass.Category `json:"-"`
	Severity         errclass.Severity `json:"-"`
	CategoryLabel    string            `json:"category"`
	SeverityLabel    string            `json:"severity"`
	Message          string            `json:"message"`
	Context          Context           `json:"context"`
	Recovered        bool              `json:"recovered"`
	RecoveryAttempts int               `json:"recovery_attempts"`
	RecoveryStrategy string            `json:"recovery_strategy,omitempty"`
}

// newRecord builds a record for a classified failure.
func newRecord(err error, ectx Context, category errclass.Category, severity errclass.Severity, now time.Time) *Record {
	return &Record{
		ID:            uuid.New().String(),
		Timestamp:     now,
		Category:      category,
		Severity:      severity,
		CategoryLabel: category.String(),
		SeverityLabel: severity.String(),
		Message:       err.Error(),
		Context:       ectx,
	}
}
