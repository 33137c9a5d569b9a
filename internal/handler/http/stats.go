package http

import (
	"net/http"
	"time"

	"newsbot-resilience/internal/resilience/errhandler"
)

// ErrorStatsResponse wraps the error handler statistics snapshot with a
// timestamp for dashboard consumption.
type ErrorStatsResponse struct {
	Timestamp string           `json:"timestamp"`
	Stats     errhandler.Stats `json:"stats"`
}

// ErrorStatsHandler exposes the error handler's aggregate statistics:
// totals by severity, category and component, the recovery rate, and the
// most recent error records.
type ErrorStatsHandler struct {
	Handler *errhandler.Handler
}

// ServeHTTP implements http.Handler.
func (h *ErrorStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ErrorStatsResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Stats:     h.Handler.Stats(),
	})
}
