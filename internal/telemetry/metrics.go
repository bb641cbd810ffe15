package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

var (
	metricsOnce   sync.Once
	meterProvider *sdkmetric.MeterProvider

	// Server metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cooldb_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cooldb_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cooldb_store_operation_duration_seconds",
		Help:    "Duration of store operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	storeEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cooldb_store_entries",
		Help: "Number of entries reported by the last status call",
	})

	eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cooldb_events_published_total",
		Help: "Total number of set events published",
	}, []string{"status"})

	publishQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cooldb_publish_queue_depth",
		Help: "Set events waiting to be published",
	})

	// Replica worker metrics
	messagesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cooldb_replica_messages_total",
		Help: "Total number of set events handled by the replica worker",
	}, []string{"status"})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cooldb_replica_batch_size",
		Help:    "Size of replica processing batches",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	// Client metrics
	clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cooldb_client_requests_total",
		Help: "Total number of exchanges made by the CoolDB client",
	}, []string{"method", "path", "outcome"})

	clientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cooldb_client_request_duration_seconds",
		Help:    "Duration of CoolDB client exchanges in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	clientRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cooldb_client_retries_total",
		Help: "Total number of retried client exchanges",
	}, []string{"method", "path"})

	clientCircuitTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cooldb_client_circuit_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"endpoint", "to"})

	serviceUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cooldb_service_up",
		Help: "Whether the service is up (1) or down (0)",
	})
)

// InitMetrics starts the OTLP meter provider when metrics export is enabled.
// Prometheus collectors are always registered.
func InitMetrics(cfg *Config) error {
	var err error
	metricsOnce.Do(func() {
		serviceUp.Set(1)
		if cfg.EnableMetrics {
			err = initOTELMetrics(cfg)
		}
	})
	return err
}

func initOTELMetrics(cfg *Config) error {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				exporter,
				sdkmetric.WithInterval(time.Duration(cfg.MetricsInterval)*time.Second),
			),
		),
	)
	otel.SetMeterProvider(meterProvider)

	return nil
}

// CloseMetrics flushes and stops the OTLP meter provider
func CloseMetrics(ctx context.Context) error {
	if meterProvider != nil {
		return meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordStoreOperation records a store operation duration
func RecordStoreOperation(operation, status string, duration time.Duration) {
	storeOperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// UpdateStoreEntries updates the entry count gauge
func UpdateStoreEntries(count int) {
	storeEntries.Set(float64(count))
}

// RecordEventPublished records the outcome of a set event publish
func RecordEventPublished(status string) {
	eventsPublishedTotal.WithLabelValues(status).Inc()
}

// UpdatePublishQueueDepth updates the async publish queue gauge
func UpdatePublishQueueDepth(depth int) {
	publishQueueDepth.Set(float64(depth))
}

// RecordReplicaMessage records a set event handled by the replica worker
func RecordReplicaMessage(status string) {
	messagesProcessedTotal.WithLabelValues(status).Inc()
}

// RecordBatchSize records the size of a replica batch
func RecordBatchSize(size int) {
	batchSize.Observe(float64(size))
}
