// Command statusd runs the resilience status server: Prometheus metrics,
// liveness, per-resource circuit breaker health, and error handler
// statistics. It also wires the process-wide Protector that call sites use
// for protected calls.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"newsbot-resilience/internal/alert"
	resiliencehttp "newsbot-resilience/internal/handler/http"
	"newsbot-resilience/internal/handler/http/requestid"
	"newsbot-resilience/internal/observability/logging"
	"newsbot-resilience/internal/observability/tracing"
	"newsbot-resilience/internal/pkg/config"
	"newsbot-resilience/internal/resilience/circuitbreaker"
	"newsbot-resilience/internal/resilience/errhandler"
	"newsbot-resilience/internal/resilience/protect"
	"newsbot-resilience/internal/resilience/recovery"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	logger := logging.NewLogger()
	if os.Getenv("LOG_FORMAT") == "text" {
		logger = logging.NewTextLogger()
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("statusd exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadResilienceConfig(logger)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	registry := circuitbreaker.NewRegistry()
	handler := buildHandler(cfg, logger)
	protector := protect.New(registry, handler, protect.Config{
		MaxReinvocations: cfg.MaxReinvocations,
		Resources:        cfg.BreakerConfigs(),
	}, logger)

	// Register configured resources up front so health reporting covers
	// them before their first call.
	for name, bc := range cfg.BreakerConfigs() {
		bc := bc
		registry.GetOrCreate(name, &bc)
	}

	server := buildServer(protector, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("status server starting",
			slog.String("addr", server.Addr),
			slog.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		logger.Info("status server stopped")
		return nil
	})

	return g.Wait()
}

// buildHandler constructs the error handler with its alert sink chain and
// recovery strategies.
func buildHandler(cfg config.ResilienceConfig, logger *slog.Logger) *errhandler.Handler {
	sinks := alert.MultiSink{alert.NewLogSink(logger)}
	if cfg.Alert.WebhookURL != "" {
		webhook := alert.NewWebhookSink(alert.WebhookConfig{
			URL:     cfg.Alert.WebhookURL,
			Timeout: cfg.Alert.Timeout.Std(),
		}, logger)
		sinks = append(sinks, alert.NewRateLimitedSink(
			webhook, cfg.Alert.RatePerMin/60.0, cfg.Alert.Burst))
	}

	handler := errhandler.NewHandler(errhandler.HandlerConfig{
		HistoryCapacity: cfg.HistoryCapacity,
		AlertThreshold:  cfg.AlertThreshold,
	}, sinks, logger)

	handler.AddStrategy(recovery.NewRetryStrategy(recovery.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay.Std(),
		MaxDelay:    cfg.Retry.MaxDelay.Std(),
	}))
	handler.AddStrategy(recovery.NewAuthStrategy(nil, 0))
	handler.AddStrategy(recovery.NewConfigStrategy(func(ctx context.Context) error {
		_, err := config.LoadResilienceConfig(logger)
		return err
	}))

	return handler
}

// contextLogger attaches a request-scoped logger carrying the request ID to
// the context, so handler log lines line up with the request. Runs inside
// the request ID middleware so the ID is already set.
func contextLogger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithLogger(r.Context(), logging.WithRequestID(r.Context(), base))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// buildServer constructs the HTTP status server with request ID and tracing
// middleware applied to every route.
func buildServer(p *protect.Protector, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", &resiliencehttp.HealthHandler{Version: version})
	mux.Handle("/health/resources", &resiliencehttp.ResourceHealthHandler{Registry: p.Registry()})
	mux.Handle("/stats/errors", &resiliencehttp.ErrorStatsHandler{Handler: p.Handler()})

	var root http.Handler = mux
	root = tracing.Middleware(root)
	root = contextLogger(logger, root)
	root = requestid.Middleware(root)

	port := config.LoadEnvInt("STATUS_PORT", 9090, config.ValidateIntRange(1, 65535))
	for _, w := range port.Warnings {
		logger.Warn("configuration fallback", slog.String("warning", w))
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port.Value.(int)),
		Handler:      root,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
