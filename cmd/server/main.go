package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/birbparty/cooldb/internal/api"
	"github.com/birbparty/cooldb/internal/queue"
	"github.com/birbparty/cooldb/internal/store"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cooldb-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	telemetryConfig := telemetry.NewConfigFromEnv()
	if err := telemetry.Init(telemetryConfig); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	tracer.Start(tracer.WithService(telemetryConfig.ServiceName))
	defer tracer.Stop()

	cfg, err := api.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	storeConfig, err := store.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load store configuration: %w", err)
	}

	queueConfig, err := queue.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load queue configuration: %w", err)
	}

	ctx := context.Background()

	db, err := store.New(ctx, storeConfig)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	telemetry.WithFields(logrus.Fields{"backend": storeConfig.Backend}).Info("Store ready")

	publisher, err := queue.NewPublisher(queueConfig)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if queueConfig.Enabled() {
		telemetry.L().Info("Publishing set events to NATS JetStream")
	}

	events := api.NewAsyncPublisher(publisher, cfg.PublishQueueSize, cfg.PublishWorkers, cfg.PublishRetries)
	server := api.NewServer(cfg, db, events)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		telemetry.L().Info("Shutting down gracefully")
	}()

	// Serve returns once requests and queued events have drained
	telemetry.WithFields(logrus.Fields{"address": cfg.Address()}).Info("CoolDB server listening")
	serveErr := server.ListenAndServe(sigCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return multierr.Combine(
		serveErr,
		publisher.Close(),
		db.Close(),
		telemetry.Shutdown(shutdownCtx),
	)
}
