package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/birbparty/cooldb/internal/store"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/birbparty/cooldb/sdk"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Syncer copies a CoolDB server's entries into a store
type Syncer struct {
	source      *sdk.Client
	store       store.Store
	concurrency int
	metrics     *Metrics
}

// NewSyncer creates a syncer. concurrency below one means one.
func NewSyncer(source *sdk.Client, st store.Store, concurrency int, metrics *Metrics) *Syncer {
	if concurrency < 1 {
		concurrency = 1
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Syncer{source: source, store: st, concurrency: concurrency, metrics: metrics}
}

// Run lists the source keys and copies each value. Individual key failures
// are counted and logged; listing failures abort the run.
func (s *Syncer) Run(ctx context.Context) error {
	keys, err := s.source.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list source keys: %w", err)
	}

	var copied, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, k := range keys {
		key, ok := k.(string)
		if !ok || key == "" {
			atomic.AddInt64(&failed, 1)
			continue
		}

		g.Go(func() error {
			if err := s.copyKey(gctx, key); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				telemetry.WithError(err).WithField("key", key).Warn("Failed to sync key")
				atomic.AddInt64(&failed, 1)
				return nil
			}
			atomic.AddInt64(&copied, 1)
			return nil
		})
	}

	err = g.Wait()
	s.metrics.RecordSync(int(copied), int(failed))

	telemetry.WithFields(logrus.Fields{"copied": copied, "failed": failed}).Info("Startup sync complete")
	return err
}

func (s *Syncer) copyKey(ctx context.Context, key string) error {
	value, err := s.source.GetValue(ctx, key)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}
	return s.store.Set(ctx, key, raw)
}
