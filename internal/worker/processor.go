package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/birbparty/cooldb/internal/queue"
	"github.com/birbparty/cooldb/internal/store"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/birbparty/cooldb/sdk"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Processor consumes set events and replays them into a replica store
type Processor struct {
	config         *Config
	store          store.Store
	queueClient    *queue.Client
	batchProcessor *BatchProcessor
	dlqHandler     *queue.DLQHandler
	metrics        *Metrics

	batch   *Batch
	batchMu sync.Mutex

	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
}

// NewProcessor creates a new message processor
func NewProcessor(config *Config, st store.Store, queueClient *queue.Client, metrics *Metrics) *Processor {
	p := &Processor{
		config:         config,
		store:          st,
		queueClient:    queueClient,
		batchProcessor: NewBatchProcessor(config, st, metrics),
		metrics:        metrics,
		stopCh:         make(chan struct{}),
		stoppedCh:      make(chan struct{}),
	}

	if queueClient != nil {
		p.dlqHandler = queue.NewDLQHandler(queueClient)
		p.batchProcessor.WithDeadLetter(queueClient.GetConfig().ConsumerMaxDeliver, p.dlqHandler.SendToDLQ)
	}
	return p
}

// Start begins processing messages and blocks until ctx is done or Stop is called
func (p *Processor) Start(ctx context.Context) error {
	defer close(p.stoppedCh)

	if p.queueClient == nil {
		return fmt.Errorf("queue client is required")
	}

	telemetry.WithFields(logrus.Fields{"worker_id": p.config.WorkerID}).Info("Replica worker starting message processing")

	queueConfig := p.queueClient.GetConfig()
	if _, err := p.queueClient.CreateConsumer(queueConfig.StreamName, queueConfig.ConsumerName, queue.SubjectSet); err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	batchTicker := time.NewTicker(p.config.BatchTimeout)
	defer batchTicker.Stop()

	metricsTicker := time.NewTicker(p.config.MetricsInterval)
	defer metricsTicker.Stop()

	sub, err := p.queueClient.Subscribe(ctx, queueConfig.StreamName, queueConfig.ConsumerName, p.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to set events: %w", err)
	}
	defer sub.Unsubscribe()

	go func() {
		if err := p.dlqHandler.ProcessDLQ(ctx); err != nil && ctx.Err() == nil {
			telemetry.WithError(err).Error("DLQ processor stopped")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return p.shutdown()

		case <-p.stopCh:
			return p.shutdown()

		case <-batchTicker.C:
			p.processPendingBatch(ctx)

		case <-metricsTicker.C:
			p.reportMetrics()
		}
	}
}

// handleMessage adds a message to the current batch, flushing it when full
func (p *Processor) handleMessage(msg *nats.Msg) {
	span := startConsumeSpan(msg)
	defer span.Finish()

	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	if p.batch == nil {
		p.batch = &Batch{
			Messages:  make([]*nats.Msg, 0, p.config.BatchSize),
			StartTime: time.Now(),
		}
	}
	p.batch.Messages = append(p.batch.Messages, msg)

	if len(p.batch.Messages) < p.config.BatchSize {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	size := len(p.batch.Messages)
	if err := p.batchProcessor.ProcessBatch(ctx, p.batch); err != nil {
		telemetry.WithError(err).Warn("Failed to process set event batch")
		span.SetTag("error", err)
	} else {
		span.SetTag("messaging.batch_size", size)
	}
	p.batch = nil
}

// startConsumeSpan continues the publisher's trace when the headers carry one
func startConsumeSpan(msg *nats.Msg) *tracer.Span {
	opts := []tracer.StartSpanOption{
		tracer.ServiceName("cooldb-replica"),
		tracer.ResourceName("consume " + queue.SubjectSet),
		tracer.SpanType("queue"),
		tracer.Tag("messaging.system", "nats"),
		tracer.Tag("messaging.destination", queue.SubjectSet),
		tracer.Tag("messaging.operation", "receive"),
	}

	if msg.Header != nil {
		spanCtx, err := tracer.Extract(tracer.HTTPHeadersCarrier(msg.Header))
		if err != nil && err != tracer.ErrSpanContextNotFound {
			telemetry.WithError(err).Debug("Failed to extract trace context")
		}
		if spanCtx != nil {
			opts = append(opts, tracer.ChildOf(spanCtx))
		}
	}

	return tracer.StartSpan("nats.consume", opts...)
}

// processPendingBatch flushes a partially filled batch
func (p *Processor) processPendingBatch(ctx context.Context) {
	p.batchMu.Lock()
	defer p.batchMu.Unlock()

	if p.batch == nil || len(p.batch.Messages) == 0 {
		return
	}
	if err := p.batchProcessor.ProcessBatch(ctx, p.batch); err != nil {
		telemetry.WithError(err).Warn("Failed to process pending set event batch")
	}
	p.batch = nil
}

// reportMetrics logs current metrics
func (p *Processor) reportMetrics() {
	stats := p.metrics.GetStats()
	telemetry.WithFields(logrus.Fields{
		"processed":     stats["messages_processed"],
		"applied":       stats["messages_applied"],
		"skipped":       stats["messages_skipped"],
		"failed":        stats["messages_failed"],
		"dead_lettered": stats["dead_lettered"],
	}).Info("Replica worker metrics")
}

// Stop asks Start to flush and return, and waits until it has. It must only
// be called after Start has been started.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.stoppedCh
}

// shutdown flushes the pending batch
func (p *Processor) shutdown() error {
	telemetry.L().Info("Replica worker shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p.processPendingBatch(ctx)
	p.reportMetrics()
	return nil
}

// PerformStartupSync copies every entry from the source server into the replica
func (p *Processor) PerformStartupSync(ctx context.Context, source *sdk.Client) error {
	if !p.config.StartupSyncEnabled || source == nil {
		telemetry.L().Info("Startup sync is disabled")
		return nil
	}

	telemetry.WithFields(logrus.Fields{"source": source.BaseURL()}).Info("Performing startup sync")
	return NewSyncer(source, p.store, p.config.SyncConcurrency, p.metrics).Run(ctx)
}
