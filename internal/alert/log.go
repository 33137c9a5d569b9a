package alert

import (
	"context"
	"log/slog"
)

// LogSink writes alert events to the structured logger. It is the default
// delivery mechanism and never fails.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Notify implements Sink by logging the event at Error level for critical
// severities and Warn otherwise.
func (s *LogSink) Notify(ctx context.Context, ev Event) error {
	attrs := []any{
		slog.String("title", ev.Title),
		slog.String("severity", ev.Severity),
		slog.String("component", ev.Component),
		slog.Time("occurred_at", ev.Timestamp),
	}
	if len(ev.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", ev.Metadata))
	}

	if ev.Severity == "critical" {
		s.logger.ErrorContext(ctx, "ALERT: "+ev.Message, attrs...)
	} else {
		s.logger.WarnContext(ctx, "ALERT: "+ev.Message, attrs...)
	}
	return nil
}
