package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/birbparty/cooldb/internal/queue"
	"github.com/birbparty/cooldb/internal/store"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/birbparty/cooldb/internal/worker"
	"github.com/birbparty/cooldb/sdk"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	telemetryConfig := telemetry.NewConfigFromEnv()
	telemetryConfig.ServiceName = "cooldb-replica"
	if err := telemetry.Init(telemetryConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize telemetry: %v\n", err)
		os.Exit(1)
	}

	tracer.Start(tracer.WithService("cooldb-replica"))
	defer tracer.Stop()

	log := telemetry.L()
	log.Info("CoolDB replica worker starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerConfig, err := worker.NewConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load worker config")
	}

	storeConfig, err := store.NewConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load store config")
	}

	queueConfig, err := queue.NewConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("Failed to load queue config")
	}

	replica, err := store.New(ctx, storeConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}
	defer replica.Close()
	log.WithField("backend", storeConfig.Backend).Info("Store ready")

	queueClient, err := queue.NewClient(queueConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to NATS")
	}
	defer queueClient.Close()

	metrics := worker.NewMetrics()
	processor := worker.NewProcessor(workerConfig, replica, queueClient, metrics)

	health := startHealthServer(workerConfig.HealthCheckPort, metrics)
	defer health.Shutdown()

	if workerConfig.SourceURL != "" {
		source, err := sdk.NewClient(sdk.DefaultConfig().
			WithBaseURL(workerConfig.SourceURL).
			WithTransport(telemetry.NewTracingTransport(sdk.NewRetryTransport(sdk.NewHTTPTransport(nil), nil))).
			WithObserver(telemetry.NewPrometheusObserver()))
		if err != nil {
			log.WithError(err).Fatal("Invalid COOLDB_SOURCE_URL")
		}
		if err := processor.PerformStartupSync(ctx, source); err != nil {
			log.WithError(err).Warn("Startup sync failed")
		}
		source.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	processorDone := make(chan error, 1)
	go func() {
		processorDone <- processor.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Shutting down gracefully")

		stopped := make(chan struct{})
		go func() {
			processor.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
			if err := <-processorDone; err != nil {
				log.WithError(err).Warn("Processor stopped with error")
			}
			log.Info("Replica worker shutdown complete")
		case <-time.After(30 * time.Second):
			log.Warn("Replica worker shutdown timeout")
		}
		cancel()

	case err := <-processorDone:
		if err != nil {
			log.WithError(err).Error("Processor error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Telemetry shutdown: %v\n", err)
	}
}

func startHealthServer(port int, metrics *worker.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/health", func(c *fiber.Ctx) error {
		if metrics.IsHealthy() {
			return c.JSON(fiber.Map{"status": "healthy", "service": "cooldb-replica"})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "service": "cooldb-replica"})
	})
	app.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(metrics.GetStats())
	})
	app.Get("/metrics", telemetry.PrometheusHandler())

	go func() {
		telemetry.WithFields(logrus.Fields{"port": port}).Info("Health check server listening")
		if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			telemetry.WithError(err).Error("Health server error")
		}
	}()

	return app
}
