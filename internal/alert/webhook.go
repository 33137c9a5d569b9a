package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WebhookConfig contains configuration for webhook alert delivery.
type WebhookConfig struct {
	// URL is the webhook endpoint (includes any authentication token).
	URL string

	// Timeout is the HTTP request timeout for webhook calls.
	Timeout time.Duration
}

// WebhookSink delivers alert events as JSON payloads to a webhook endpoint.
// Each request carries a generated request ID for tracing.
type WebhookSink struct {
	config     WebhookConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhookSink creates a WebhookSink with the specified configuration.
// A zero timeout defaults to 10 seconds.
func NewWebhookSink(cfg WebhookConfig, logger *slog.Logger) *WebhookSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSink{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// webhookPayload is the JSON body posted to the webhook endpoint.
type webhookPayload struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Component string         `json:"component"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Notify implements Sink by POSTing the event as JSON.
// Non-2xx responses are reported as errors; response bodies are drained so
// connections can be reused.
func (s *WebhookSink) Notify(ctx context.Context, ev Event) error {
	requestID := uuid.New().String()

	payload := webhookPayload{
		Title:     ev.Title,
		Message:   ev.Message,
		Severity:  ev.Severity,
		Component: ev.Component,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Metadata:  ev.Metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	s.logger.Debug("sending alert webhook",
		slog.String("request_id", requestID),
		slog.String("severity", ev.Severity),
		slog.String("component", ev.Component))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send alert webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	s.logger.Debug("alert webhook delivered", slog.String("request_id", requestID))
	return nil
}
