package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/birbparty/cooldb/internal/queue"
	"github.com/birbparty/cooldb/internal/store"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Batch represents a batch of messages to process
type Batch struct {
	Messages  []*nats.Msg
	StartTime time.Time
}

// DeadLetterFunc parks a message that cannot be applied
type DeadLetterFunc func(ctx context.Context, msg *nats.Msg, cause error) error

// BatchProcessor applies batches of set events to the replica store
type BatchProcessor struct {
	config  *Config
	store   store.Store
	metrics *Metrics

	// Delivery hooks, swapped in tests
	ack        func(*nats.Msg) error
	nak        func(*nats.Msg) error
	deliveries func(*nats.Msg) int
	deadLetter DeadLetterFunc
	maxDeliver int
}

// pending pairs a decoded event with its message
type pending struct {
	msg   *nats.Msg
	event *queue.SetEvent
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(config *Config, st store.Store, metrics *Metrics) *BatchProcessor {
	return &BatchProcessor{
		config:     config,
		store:      st,
		metrics:    metrics,
		ack:        func(m *nats.Msg) error { return m.Ack() },
		nak:        func(m *nats.Msg) error { return m.Nak() },
		deliveries: deliveryCount,
	}
}

// WithDeadLetter parks messages in a DLQ once they have been delivered
// maxDeliver times instead of requesting redelivery.
func (bp *BatchProcessor) WithDeadLetter(maxDeliver int, fn DeadLetterFunc) *BatchProcessor {
	bp.maxDeliver = maxDeliver
	bp.deadLetter = fn
	return bp
}

// ProcessBatch applies a batch. Only the newest event per key is written;
// superseded events are acknowledged without a write.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, batch *Batch) error {
	if batch == nil || len(batch.Messages) == 0 {
		return nil
	}

	startTime := time.Now()
	var errorCount int64

	latest := make(map[string]pending, len(batch.Messages))
	order := make([]string, 0, len(batch.Messages))

	for _, msg := range batch.Messages {
		event, err := queue.UnmarshalSetEvent(msg.Data)
		if err == nil && event.Key == "" {
			err = store.ErrEmptyKey
		}
		if err != nil {
			bp.metrics.RecordError("unmarshal_error")
			bp.fail(ctx, msg, fmt.Errorf("failed to unmarshal set event: %w", err))
			errorCount++
			continue
		}

		current, seen := latest[event.Key]
		if !seen {
			order = append(order, event.Key)
			latest[event.Key] = pending{msg: msg, event: event}
			continue
		}

		// Later delivery wins ties
		if event.Timestamp.Before(current.event.Timestamp) {
			bp.skip(msg)
			continue
		}
		bp.skip(current.msg)
		latest[event.Key] = pending{msg: msg, event: event}
	}

	sem := make(chan struct{}, bp.config.ProcessingConcurrency)
	var wg sync.WaitGroup

	for _, key := range order {
		p := latest[key]
		wg.Add(1)
		go func(p pending) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := bp.apply(ctx, p); err != nil {
				atomic.AddInt64(&errorCount, 1)
			}
		}(p)
	}
	wg.Wait()

	bp.metrics.RecordBatch(len(batch.Messages), time.Since(startTime))

	if errorCount > 0 {
		return fmt.Errorf("batch processing completed with %d errors out of %d messages", errorCount, len(batch.Messages))
	}
	return nil
}

// apply writes a single event to the store
func (bp *BatchProcessor) apply(ctx context.Context, p pending) error {
	applyCtx := ctx
	if bp.config.ApplyTimeout > 0 {
		var cancel context.CancelFunc
		applyCtx, cancel = context.WithTimeout(ctx, bp.config.ApplyTimeout)
		defer cancel()
	}

	if err := bp.store.Set(applyCtx, p.event.Key, p.event.Value); err != nil {
		bp.metrics.RecordError("apply_error")
		err = fmt.Errorf("failed to apply key %s: %w", p.event.Key, err)
		bp.fail(ctx, p.msg, err)
		return err
	}

	if err := bp.ack(p.msg); err != nil {
		telemetry.WithError(err).WithField("key", p.event.Key).Warn("Failed to ACK message")
	}
	bp.metrics.RecordApplied()
	return nil
}

// skip acknowledges a superseded message
func (bp *BatchProcessor) skip(msg *nats.Msg) {
	if err := bp.ack(msg); err != nil {
		telemetry.WithError(err).Warn("Failed to ACK superseded message")
	}
	bp.metrics.RecordSkipped()
}

// fail requests redelivery, or parks the message once it has used up its deliveries
func (bp *BatchProcessor) fail(ctx context.Context, msg *nats.Msg, cause error) {
	if bp.deadLetter != nil && bp.deliveries(msg) >= bp.maxDeliver {
		if err := bp.deadLetter(ctx, msg, cause); err != nil {
			telemetry.WithError(err).Error("Failed to send message to DLQ")
			bp.nak(msg)
			return
		}
		bp.metrics.RecordDeadLettered()
		bp.ack(msg)
		return
	}

	telemetry.WithFields(logrus.Fields{"error": cause.Error()}).Debug("Requesting redelivery")
	bp.nak(msg)
}

// deliveryCount reads the JetStream delivery count, zero for plain messages
func deliveryCount(msg *nats.Msg) int {
	meta, err := msg.Metadata()
	if err != nil {
		return 0
	}
	return int(meta.NumDelivered)
}
