package worker

import (
	"sync"
	"time"

	"github.com/birbparty/cooldb/internal/telemetry"
)

// Metrics holds worker metrics
type Metrics struct {
	mu sync.RWMutex

	// Message processing
	messagesProcessed int64
	messagesApplied   int64
	messagesSkipped   int64
	messagesFailed    int64
	deadLettered      int64

	// Batches
	batchesProcessed    int64
	batchProcessingTime time.Duration
	avgBatchSize        float64

	errorCounts map[string]int64

	// Startup sync
	syncedEntries int64
	syncErrors    int64

	startTime       time.Time
	lastProcessedAt time.Time
	isHealthy       bool
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		errorCounts: make(map[string]int64),
		startTime:   time.Now(),
		isHealthy:   true,
	}
}

// RecordApplied records an event written to the replica
func (m *Metrics) RecordApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messagesProcessed++
	m.messagesApplied++
	m.lastProcessedAt = time.Now()
	telemetry.RecordReplicaMessage("applied")
}

// RecordSkipped records an event superseded by a newer one in the same batch
func (m *Metrics) RecordSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messagesProcessed++
	m.messagesSkipped++
	telemetry.RecordReplicaMessage("skipped")
}

// RecordError records an error
func (m *Metrics) RecordError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errorCounts[errorType]++
	m.messagesFailed++
	telemetry.RecordReplicaMessage("failed")
}

// RecordDeadLettered records a message parked in the DLQ
func (m *Metrics) RecordDeadLettered() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deadLettered++
	telemetry.RecordReplicaMessage("dead_lettered")
}

// RecordBatch records batch processing metrics
func (m *Metrics) RecordBatch(size int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchesProcessed++
	m.batchProcessingTime += duration
	m.avgBatchSize += (float64(size) - m.avgBatchSize) / float64(m.batchesProcessed)
	telemetry.RecordBatchSize(size)
}

// RecordSync records the outcome of a startup sync
func (m *Metrics) RecordSync(count, errors int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.syncedEntries += int64(count)
	m.syncErrors += int64(errors)
}

// GetStats returns current metrics
func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	timeSinceLastProcessed := time.Duration(0)
	if !m.lastProcessedAt.IsZero() {
		timeSinceLastProcessed = time.Since(m.lastProcessedAt)
	}

	errorCounts := make(map[string]int64, len(m.errorCounts))
	for k, v := range m.errorCounts {
		errorCounts[k] = v
	}

	avgBatchTime := 0.0
	if m.batchesProcessed > 0 {
		avgBatchTime = float64(m.batchProcessingTime.Milliseconds()) / float64(m.batchesProcessed)
	}

	return map[string]interface{}{
		"uptime_seconds":        time.Since(m.startTime).Seconds(),
		"messages_processed":    m.messagesProcessed,
		"messages_applied":      m.messagesApplied,
		"messages_skipped":      m.messagesSkipped,
		"messages_failed":       m.messagesFailed,
		"dead_lettered":         m.deadLettered,
		"batches_processed":     m.batchesProcessed,
		"avg_batch_size":        m.avgBatchSize,
		"avg_batch_time_ms":     avgBatchTime,
		"synced_entries":        m.syncedEntries,
		"sync_errors":           m.syncErrors,
		"error_counts":          errorCounts,
		"last_processed_ago_ms": timeSinceLastProcessed.Milliseconds(),
		"is_healthy":            m.isHealthy,
	}
}

// SetHealthy sets the health status
func (m *Metrics) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isHealthy = healthy
}

// IsHealthy returns the health status
func (m *Metrics) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isHealthy
}
