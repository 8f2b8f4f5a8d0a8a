package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/ann"
	"github.com/dreamware/vectorcore/internal/indexer"
	"github.com/dreamware/vectorcore/internal/ingest"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

func TestRunIndexerRunOnce_BuildsShardFromPendingSlice(t *testing.T) {
	store := objectstore.NewMemStore()
	catalog := model.NewCatalog(store)
	require.NoError(t, runBucketCreate(context.Background(), catalog, "b1"))
	require.NoError(t, runIndexCreate(context.Background(), catalog, model.IndexDescriptor{
		Bucket: "b1", IndexName: "idx1", Dimension: 2, DataType: model.DataTypeFloat32,
		DistanceMetric: model.MetricEuclidean, IVFNList: 16, PQM: 1, PQNBits: 8, DefaultNProbe: 1,
		CreatedAt: time.Now().UTC(),
	}))

	pipeline := ingest.NewPipeline(store, catalog, 1000)
	_, err := pipeline.PutVectors(context.Background(), "b1", "idx1", []model.VectorRecord{
		{Key: "a", Embedding: []float32{1, 2}},
		{Key: "b", Embedding: []float32{3, 4}},
	})
	require.NoError(t, err)

	cycle := indexer.NewCycle(store, catalog, ann.NewFakeBuilder(), indexer.Config{
		SMax: 10_000, BuildMinThreshold: 1, BuildIdleTimeout: time.Hour, LeaseTTL: time.Minute,
	}, nil)

	result, err := runIndexerRunOnce(context.Background(), cycle, "b1", "idx1")
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.ShardsBuilt)
	assert.Equal(t, 1, result.ManifestAfter)
}

func TestRunIndexerRunOnce_SkipsWhenNothingPending(t *testing.T) {
	store := objectstore.NewMemStore()
	catalog := model.NewCatalog(store)
	require.NoError(t, runBucketCreate(context.Background(), catalog, "b1"))
	require.NoError(t, runIndexCreate(context.Background(), catalog, model.IndexDescriptor{
		Bucket: "b1", IndexName: "idx1", Dimension: 2, DataType: model.DataTypeFloat32,
		DistanceMetric: model.MetricEuclidean, IVFNList: 16, PQM: 1, PQNBits: 8, DefaultNProbe: 1,
		CreatedAt: time.Now().UTC(),
	}))

	cycle := indexer.NewCycle(store, catalog, ann.NewFakeBuilder(), indexer.Config{
		SMax: 10_000, BuildMinThreshold: 1, BuildIdleTimeout: time.Hour, LeaseTTL: time.Minute,
	}, nil)

	result, err := runIndexerRunOnce(context.Background(), cycle, "b1", "idx1")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}
