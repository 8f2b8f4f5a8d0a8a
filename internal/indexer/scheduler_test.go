package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/model"
)

func TestScheduler_HintTriggersEarlyRun(t *testing.T) {
	cycle, store, _, pipeline := newTestIndexer(t, Config{SMax: 10, BuildMinThreshold: 1, LeaseTTL: time.Second})
	scheduler := NewScheduler(cycle, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Watch(ctx, "b1", "idx")

	_, err := pipeline.PutVectors(ctx, "b1", "idx", []model.VectorRecord{{Key: "a", Embedding: []float32{1, 2}}})
	require.NoError(t, err)
	scheduler.Hint("b1", "idx")

	require.Eventually(t, func() bool {
		manifest, err := model.ReadManifest(ctx, store, "b1", "idx")
		return err == nil && len(manifest.Shards) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	scheduler.Wait()
}

func TestScheduler_WatchIsIdempotentPerIndex(t *testing.T) {
	cycle, _, _, _ := newTestIndexer(t, Config{SMax: 10, BuildMinThreshold: 1, LeaseTTL: time.Second})
	scheduler := NewScheduler(cycle, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Watch(ctx, "b1", "idx")
	scheduler.Watch(ctx, "b1", "idx") // second call for the same pair is a no-op

	cancel()
	scheduler.Wait()
	assert.NotPanics(t, func() { scheduler.Hint("b1", "idx") })
}
