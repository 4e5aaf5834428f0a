package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fildawallet/observability"
	telemetry "fildawallet/observability/otel"
)

type ObservabilityConfig struct {
	ServiceName string
	LogRequests bool
	Enabled     bool
}

// Observability records a span, a request counter and a latency sample for
// every request.
type Observability struct {
	cfg    ObservabilityConfig
	logger *slog.Logger
	tracer trace.Tracer
}

func NewObservability(cfg ObservabilityConfig, logger *slog.Logger) *Observability {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wallet-gateway"
	}
	return &Observability{
		cfg:    cfg,
		logger: logger,
		tracer: telemetry.Tracer(cfg.ServiceName),
	}
}

// Middleware labels the recorded request with module; the operation is the
// matched chi route pattern.
func (o *Observability) Middleware(module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !o.cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ctx, span := o.tracer.Start(r.Context(), module, trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("wallet.module", module),
			))
			defer span.End()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))

			operation := r.Method + " " + routePattern(r)
			span.SetAttributes(
				attribute.String("http.route", operation),
				attribute.Int("http.status_code", recorder.status),
			)
			duration := time.Since(start)
			observability.ModuleMetrics().Observe(module, operation, recorder.status, duration)
			if o.cfg.LogRequests {
				o.logger.Info("request",
					slog.String("operation", operation),
					slog.String("path", r.URL.Path),
					slog.Int("status", recorder.status),
					slog.String("requestid", RequestIDFromContext(r.Context())),
					slog.Duration("duration", duration),
				)
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// MetricsHandler serves the process-wide Prometheus registry.
func (o *Observability) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
