package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/birbparty/cooldb/internal/queue"
	"github.com/birbparty/cooldb/internal/store"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deliveryLog records how the processor settled each message
type deliveryLog struct {
	mu     sync.Mutex
	acked  []*nats.Msg
	nacked []*nats.Msg
}

func (d *deliveryLog) ack(m *nats.Msg) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acked = append(d.acked, m)
	return nil
}

func (d *deliveryLog) nak(m *nats.Msg) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nacked = append(d.nacked, m)
	return nil
}

func testConfig() *Config {
	return &Config{
		BatchSize:             3,
		BatchTimeout:          time.Second,
		ProcessingConcurrency: 4,
		ApplyTimeout:          time.Second,
		MetricsInterval:       time.Minute,
	}
}

func newTestBatchProcessor(st store.Store) (*BatchProcessor, *deliveryLog, *Metrics) {
	log := &deliveryLog{}
	metrics := NewMetrics()
	bp := NewBatchProcessor(testConfig(), st, metrics)
	bp.ack = log.ack
	bp.nak = log.nak
	return bp, log, metrics
}

func eventMsg(t *testing.T, key, value string, ts time.Time) *nats.Msg {
	t.Helper()
	event := queue.NewSetEvent(key, json.RawMessage(value))
	event.Timestamp = ts
	data, err := event.Marshal()
	require.NoError(t, err)

	msg := nats.NewMsg(queue.SubjectSet)
	msg.Data = data
	return msg
}

// failingStore rejects writes to one key
type failingStore struct {
	*store.MemoryStore
	badKey string
}

func (f *failingStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if key == f.badKey {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func TestBatchProcessor_AppliesEvents(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	bp, log, metrics := newTestBatchProcessor(st)

	now := time.Now()
	batch := &Batch{Messages: []*nats.Msg{
		eventMsg(t, "a", `1`, now),
		eventMsg(t, "b", `{"x":true}`, now),
	}}

	require.NoError(t, bp.ProcessBatch(ctx, batch))

	got, err := st.Get(ctx, "b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":true}`, string(got))
	assert.Len(t, log.acked, 2)
	assert.Empty(t, log.nacked)
	assert.Equal(t, int64(2), metrics.GetStats()["messages_applied"])
}

func TestBatchProcessor_NewestEventPerKeyWins(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	bp, log, metrics := newTestBatchProcessor(st)

	now := time.Now()
	batch := &Batch{Messages: []*nats.Msg{
		eventMsg(t, "k", `"second"`, now.Add(time.Second)),
		eventMsg(t, "k", `"first"`, now),
		eventMsg(t, "k", `"third"`, now.Add(time.Second)),
	}}

	require.NoError(t, bp.ProcessBatch(ctx, batch))

	got, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"third"`, string(got))
	assert.Len(t, log.acked, 3)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats["messages_applied"])
	assert.Equal(t, int64(2), stats["messages_skipped"])
}

func TestBatchProcessor_BadPayloadIsNacked(t *testing.T) {
	ctx := context.Background()
	bp, log, metrics := newTestBatchProcessor(store.NewMemoryStore())

	bad := nats.NewMsg(queue.SubjectSet)
	bad.Data = []byte("not json")
	noKey := eventMsg(t, "", `1`, time.Now())

	err := bp.ProcessBatch(ctx, &Batch{Messages: []*nats.Msg{bad, noKey}})
	assert.ErrorContains(t, err, "2 errors out of 2 messages")
	assert.ElementsMatch(t, []*nats.Msg{bad, noKey}, log.nacked)
	assert.Equal(t, int64(2), metrics.GetStats()["messages_failed"])
}

func TestBatchProcessor_StoreFailure(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{MemoryStore: store.NewMemoryStore(), badKey: "bad"}
	bp, log, _ := newTestBatchProcessor(st)

	good := eventMsg(t, "good", `1`, time.Now())
	bad := eventMsg(t, "bad", `2`, time.Now())

	err := bp.ProcessBatch(ctx, &Batch{Messages: []*nats.Msg{good, bad}})
	assert.ErrorContains(t, err, "1 errors out of 2 messages")
	assert.Equal(t, []*nats.Msg{good}, log.acked)
	assert.Equal(t, []*nats.Msg{bad}, log.nacked)
}

func TestBatchProcessor_DeadLetterAfterMaxDeliveries(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{MemoryStore: store.NewMemoryStore(), badKey: "bad"}
	bp, log, metrics := newTestBatchProcessor(st)

	var parked []error
	bp.WithDeadLetter(3, func(ctx context.Context, msg *nats.Msg, cause error) error {
		parked = append(parked, cause)
		return nil
	})

	deliveries := 1
	bp.deliveries = func(*nats.Msg) int { return deliveries }

	msg := eventMsg(t, "bad", `1`, time.Now())
	assert.Error(t, bp.ProcessBatch(ctx, &Batch{Messages: []*nats.Msg{msg}}))
	assert.Empty(t, parked)
	assert.Len(t, log.nacked, 1)

	deliveries = 3
	assert.Error(t, bp.ProcessBatch(ctx, &Batch{Messages: []*nats.Msg{msg}}))
	require.Len(t, parked, 1)
	assert.ErrorContains(t, parked[0], "disk full")
	assert.Len(t, log.acked, 1)
	assert.Equal(t, int64(1), metrics.GetStats()["dead_lettered"])
}

func TestBatchProcessor_DeadLetterFailureFallsBackToNak(t *testing.T) {
	bp, log, _ := newTestBatchProcessor(store.NewMemoryStore())
	bp.WithDeadLetter(1, func(context.Context, *nats.Msg, error) error {
		return errors.New("dlq unavailable")
	})
	bp.deliveries = func(*nats.Msg) int { return 5 }

	bad := nats.NewMsg(queue.SubjectSet)
	bad.Data = []byte("{")

	assert.Error(t, bp.ProcessBatch(context.Background(), &Batch{Messages: []*nats.Msg{bad}}))
	assert.Equal(t, []*nats.Msg{bad}, log.nacked)
	assert.Empty(t, log.acked)
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	bp, _, metrics := newTestBatchProcessor(store.NewMemoryStore())

	assert.NoError(t, bp.ProcessBatch(context.Background(), nil))
	assert.NoError(t, bp.ProcessBatch(context.Background(), &Batch{}))
	assert.Equal(t, int64(0), metrics.GetStats()["batches_processed"])
}

func TestDeliveryCount_PlainMessage(t *testing.T) {
	assert.Equal(t, 0, deliveryCount(nats.NewMsg(queue.SubjectSet)))
}
