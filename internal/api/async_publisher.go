package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/DataDog/dd-trace-go/v2/ddtrace/tracer"
	"github.com/birbparty/cooldb/internal/queue"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// PublishRequest is a set event waiting to be published
type PublishRequest struct {
	Ctx     context.Context // carries the request trace
	Key     string
	Value   json.RawMessage
	Retries int
}

// AsyncPublisherStats provides statistics about the async publisher
type AsyncPublisherStats struct {
	QueueDepth    int `json:"queue_depth"`
	QueueCapacity int `json:"queue_capacity"`
	WorkerCount   int `json:"worker_count"`
}

// AsyncPublisher publishes set events off the request path. A full queue drops
// the event; the write itself has already been stored.
type AsyncPublisher struct {
	publisher queue.Publisher
	queue     chan PublishRequest
	workers   int
	maxRetry  int
	backoff   func(attempt int) time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncPublisher creates an async publisher with a worker pool
func NewAsyncPublisher(publisher queue.Publisher, queueSize, workers, maxRetry int) *AsyncPublisher {
	ap := &AsyncPublisher{
		publisher: publisher,
		queue:     make(chan PublishRequest, queueSize),
		workers:   workers,
		maxRetry:  maxRetry,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 100 * time.Millisecond
		},
	}

	for i := 0; i < workers; i++ {
		ap.wg.Add(1)
		go ap.worker(i)
	}

	return ap
}

// Publish queues a set event
func (ap *AsyncPublisher) Publish(ctx context.Context, key string, value json.RawMessage) {
	ap.mu.RLock()
	defer ap.mu.RUnlock()

	if ap.closed {
		telemetry.RecordEventPublished("dropped")
		return
	}

	select {
	case ap.queue <- PublishRequest{Ctx: context.WithoutCancel(ctx), Key: key, Value: value}:
		telemetry.UpdatePublishQueueDepth(len(ap.queue))
	default:
		telemetry.WithFields(logrus.Fields{"key": key}).Warn("Publish queue full, dropping set event")
		telemetry.RecordEventPublished("dropped")
	}
}

func (ap *AsyncPublisher) worker(id int) {
	defer ap.wg.Done()

	for req := range ap.queue {
		ap.publish(id, req)
		telemetry.UpdatePublishQueueDepth(len(ap.queue))
	}
}

func (ap *AsyncPublisher) publish(id int, req PublishRequest) {
	for {
		span, ctx := tracer.StartSpanFromContext(req.Ctx, "nats.async_publish",
			tracer.ServiceName("cooldb-publisher"),
			tracer.ResourceName(queue.SubjectSet),
			tracer.SpanType("queue"),
			tracer.Tag("cooldb.key", req.Key),
			tracer.Tag("cooldb.retries", req.Retries),
		)

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := ap.publisher.PublishSet(ctx, req.Key, req.Value)
		cancel()
		span.Finish(tracer.WithError(err))

		if err == nil {
			telemetry.RecordEventPublished("ok")
			return
		}

		log := telemetry.WithError(err).WithFields(logrus.Fields{
			"worker":  id,
			"key":     req.Key,
			"retries": req.Retries,
		})

		if req.Retries >= ap.maxRetry {
			log.Error("Max retries exceeded publishing set event")
			telemetry.RecordEventPublished("error")
			return
		}

		req.Retries++
		log.Warn("Retrying set event publish")
		time.Sleep(ap.backoff(req.Retries))
	}
}

// QueueDepth returns the current queue depth
func (ap *AsyncPublisher) QueueDepth() int {
	return len(ap.queue)
}

// Stats returns current statistics
func (ap *AsyncPublisher) Stats() AsyncPublisherStats {
	return AsyncPublisherStats{
		QueueDepth:    len(ap.queue),
		QueueCapacity: cap(ap.queue),
		WorkerCount:   ap.workers,
	}
}

// Shutdown stops accepting events and waits for queued ones to drain
func (ap *AsyncPublisher) Shutdown() {
	ap.mu.Lock()
	if !ap.closed {
		ap.closed = true
		close(ap.queue)
	}
	ap.mu.Unlock()

	ap.wg.Wait()
}
