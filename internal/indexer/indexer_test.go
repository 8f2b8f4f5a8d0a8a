package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/ann"
	"github.com/dreamware/vectorcore/internal/ingest"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

func newTestIndexer(t *testing.T, cfg Config) (*Cycle, objectstore.Store, *model.Catalog, *ingest.Pipeline) {
	t.Helper()
	store := objectstore.NewMemStore()
	catalog := model.NewCatalog(store)
	require.NoError(t, catalog.CreateIndex(context.Background(), model.IndexDescriptor{
		Bucket:         "b1",
		IndexName:      "idx",
		Dimension:      2,
		DataType:       model.DataTypeFloat32,
		DistanceMetric: model.MetricEuclidean,
		IVFNList:       16,
		PQM:            1,
		PQNBits:        8,
		DefaultNProbe:  4,
		CreatedAt:      time.Now(),
	}))
	pipeline := ingest.NewPipeline(store, catalog, 1000)
	cycle := NewCycle(store, catalog, ann.NewFakeBuilder(), cfg, nil)
	return cycle, store, catalog, pipeline
}

func TestCycle_Run_SkipsWhenNoSlices(t *testing.T) {
	cycle, _, _, _ := newTestIndexer(t, Config{SMax: 10, BuildMinThreshold: 1, LeaseTTL: time.Second})
	result, err := cycle.Run(context.Background(), "b1", "idx")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestCycle_Run_SkipsBelowThresholdBeforeIdleTimeout(t *testing.T) {
	cycle, _, _, pipeline := newTestIndexer(t, Config{SMax: 10, BuildMinThreshold: 100, BuildIdleTimeout: time.Hour, LeaseTTL: time.Second})
	ctx := context.Background()

	_, err := pipeline.PutVectors(ctx, "b1", "idx", []model.VectorRecord{{Key: "a", Embedding: []float32{1, 2}}})
	require.NoError(t, err)

	result, err := cycle.Run(ctx, "b1", "idx")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestCycle_Run_BuildsAndPublishesOneShard(t *testing.T) {
	cycle, store, _, pipeline := newTestIndexer(t, Config{SMax: 10, BuildMinThreshold: 1, LeaseTTL: time.Second})
	ctx := context.Background()

	_, err := pipeline.PutVectors(ctx, "b1", "idx", []model.VectorRecord{
		{Key: "a", Embedding: []float32{1, 2}},
		{Key: "b", Embedding: []float32{3, 4}},
	})
	require.NoError(t, err)

	result, err := cycle.Run(ctx, "b1", "idx")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ShardsBuilt)
	assert.Equal(t, 0, result.ShardsFailed)
	assert.Equal(t, 1, result.ManifestAfter)

	manifest, err := model.ReadManifest(ctx, store, "b1", "idx")
	require.NoError(t, err)
	require.Len(t, manifest.Shards, 1)
	assert.Equal(t, 2, manifest.Shards[0].VectorCount)

	// Lease released: a second run should acquire it without conflict.
	result2, err := cycle.Run(ctx, "b1", "idx")
	require.NoError(t, err)
	assert.True(t, result2.Skipped)
}

func TestCycle_Run_SplitsIntoMultipleShardGroups(t *testing.T) {
	cycle, store, _, pipeline := newTestIndexer(t, Config{SMax: 2, BuildMinThreshold: 1, LeaseTTL: time.Second})
	ctx := context.Background()

	_, err := pipeline.PutVectors(ctx, "b1", "idx", []model.VectorRecord{
		{Key: "a", Embedding: []float32{1, 2}},
		{Key: "b", Embedding: []float32{3, 4}},
		{Key: "c", Embedding: []float32{5, 6}},
	})
	require.NoError(t, err)

	result, err := cycle.Run(ctx, "b1", "idx")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ShardsBuilt)

	manifest, err := model.ReadManifest(ctx, store, "b1", "idx")
	require.NoError(t, err)
	assert.Len(t, manifest.Shards, 2)

	total := 0
	for _, s := range manifest.Shards {
		total += s.VectorCount
	}
	assert.Equal(t, 3, total)
}

func TestCycle_Run_SecondCycleOnlyConsumesNewSlices(t *testing.T) {
	cycle, store, _, pipeline := newTestIndexer(t, Config{SMax: 10, BuildMinThreshold: 1, LeaseTTL: time.Second})
	ctx := context.Background()

	_, err := pipeline.PutVectors(ctx, "b1", "idx", []model.VectorRecord{{Key: "a", Embedding: []float32{1, 2}}})
	require.NoError(t, err)
	_, err = cycle.Run(ctx, "b1", "idx")
	require.NoError(t, err)

	_, err = pipeline.PutVectors(ctx, "b1", "idx", []model.VectorRecord{{Key: "b", Embedding: []float32{3, 4}}})
	require.NoError(t, err)
	result, err := cycle.Run(ctx, "b1", "idx")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ShardsBuilt)

	manifest, err := model.ReadManifest(ctx, store, "b1", "idx")
	require.NoError(t, err)
	assert.Len(t, manifest.Shards, 2)
}
