package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// Init initializes logging, metrics and tracing
func Init(cfg *Config) error {
	if err := InitLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := InitMetrics(cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := InitTracing(cfg); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	L().WithFields(logrus.Fields{
		"tracing": cfg.EnableTracing,
		"metrics": cfg.EnableMetrics,
	}).Debug("Telemetry initialized")

	return nil
}

// Shutdown flushes exporters and closes the log file
func Shutdown(ctx context.Context) error {
	return multierr.Combine(
		CloseTracing(ctx),
		CloseMetrics(ctx),
		CloseLogger(),
	)
}

// PrometheusHandler serves the default Prometheus registry through fiber
func PrometheusHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// FiberMetricsMiddleware records request metrics and a server span per request
func FiberMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		carrier := propagation.MapCarrier{}
		c.Request().Header.VisitAll(func(key, value []byte) {
			carrier.Set(string(key), string(value))
		})
		parent := otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)

		ctx, span := StartSpan(parent, c.Method()+" "+c.Path(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Route().Path
		RecordHTTPRequest(c.Method(), route, strconv.Itoa(status), time.Since(start))

		span.SetAttributes(
			semconv.HTTPMethodKey.String(c.Method()),
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPStatusCodeKey.Int(status),
		)

		if err != nil {
			RecordError(ctx, err)
			SetErrorStatus(ctx, err.Error())
		} else if status >= 500 {
			SetErrorStatus(ctx, fmt.Sprintf("HTTP %d", status))
		} else {
			SetOKStatus(ctx)
		}

		return err
	}
}

// FiberLoggingMiddleware returns a Fiber middleware for structured logging
func FiberLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		entry := WithContext(c.UserContext()).WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).Milliseconds(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
		})

		switch {
		case err != nil:
			entry.WithError(err).Error("Request failed")
		case c.Response().StatusCode() >= 500:
			entry.Warn("Request completed with error status")
		default:
			entry.Info("Request completed")
		}

		return err
	}
}

// TimeOperation times a store operation under a child span. Call the
// returned function with the final status ("ok", "not_found" or "error").
func TimeOperation(ctx context.Context, operation string) (context.Context, func(status string)) {
	start := time.Now()
	ctx, span := StartSpan(ctx, "store."+operation)

	return ctx, func(status string) {
		duration := time.Since(start)
		RecordStoreOperation(operation, status, duration)

		if status == "error" {
			SetErrorStatus(ctx, "Operation failed")
		} else {
			SetOKStatus(ctx)
		}
		span.End()

		WithContext(ctx).WithFields(logrus.Fields{
			"operation": operation,
			"status":    status,
			"duration":  duration.Milliseconds(),
		}).Debug("Store operation completed")
	}
}
