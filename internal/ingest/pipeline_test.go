package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

func newTestPipeline(t *testing.T) (*Pipeline, objectstore.Store, *model.Catalog) {
	t.Helper()
	store := objectstore.NewMemStore()
	catalog := model.NewCatalog(store)
	require.NoError(t, catalog.CreateIndex(context.Background(), model.IndexDescriptor{
		Bucket:         "b1",
		IndexName:      "idx",
		Dimension:      3,
		DataType:       model.DataTypeFloat32,
		DistanceMetric: model.MetricCosine,
		IVFNList:       100,
		PQM:            3,
		PQNBits:        8,
		DefaultNProbe:  8,
		CreatedAt:      time.Now(),
	}))
	return NewPipeline(store, catalog, 1000), store, catalog
}

func TestPipeline_PutVectorsWritesImmutableSlice(t *testing.T) {
	p, store, _ := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.PutVectors(ctx, "b1", "idx", []model.VectorRecord{
		{Key: "a", Embedding: []float32{1, 2, 3}},
		{Key: "b", Embedding: []float32{4, 5, 6}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.VectorCount)
	assert.NotEmpty(t, result.SliceID)

	key := model.RawSliceKey("b1", "idx", result.SliceID, "jsonl")
	data, err := store.Get(ctx, key, nil)
	require.NoError(t, err)

	decoded, err := DecodeSliceJSONL(data)
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestPipeline_PutVectorsAssignsIncreasingSliceIDs(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	ctx := context.Background()
	records := []model.VectorRecord{{Key: "a", Embedding: []float32{1, 2, 3}}}

	first, err := p.PutVectors(ctx, "b1", "idx", records)
	require.NoError(t, err)
	second, err := p.PutVectors(ctx, "b1", "idx", records)
	require.NoError(t, err)

	assert.Less(t, first.SliceID, second.SliceID)
}

func TestPipeline_PutVectorsRejectsEmptyBatch(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, err := p.PutVectors(context.Background(), "b1", "idx", nil)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindValidation, coreerr.KindOf(err))
}

func TestPipeline_PutVectorsRejectsWrongDimension(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, err := p.PutVectors(context.Background(), "b1", "idx", []model.VectorRecord{
		{Key: "a", Embedding: []float32{1, 2}},
	})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindValidation, coreerr.KindOf(err))
}

func TestPipeline_PutVectorsRejectsBatchOverCap(t *testing.T) {
	store := objectstore.NewMemStore()
	catalog := model.NewCatalog(store)
	ctx := context.Background()
	require.NoError(t, catalog.CreateIndex(ctx, model.IndexDescriptor{
		Bucket: "b1", IndexName: "idx", Dimension: 1, DataType: model.DataTypeFloat32,
		DistanceMetric: model.MetricCosine, IVFNList: 16, PQM: 1, PQNBits: 8, DefaultNProbe: 1,
		CreatedAt: time.Now(),
	}))
	p := NewPipeline(store, catalog, 1)

	_, err := p.PutVectors(ctx, "b1", "idx", []model.VectorRecord{
		{Key: "a", Embedding: []float32{1}},
		{Key: "b", Embedding: []float32{2}},
	})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindValidation, coreerr.KindOf(err))
}

func TestPipeline_PutVectorsFailsForUnknownIndex(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	_, err := p.PutVectors(context.Background(), "b", "missing", []model.VectorRecord{
		{Key: "a", Embedding: []float32{1, 2, 3}},
	})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindNotFound, coreerr.KindOf(err))
}
