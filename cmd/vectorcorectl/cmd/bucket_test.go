package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

func TestRunBucketCreate_PersistsBucket(t *testing.T) {
	catalog := model.NewCatalog(objectstore.NewMemStore())
	require.NoError(t, runBucketCreate(context.Background(), catalog, "b1"))

	b, err := catalog.GetBucket(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", b.Name)
}

func TestRunBucketCreate_ConflictsOnDuplicate(t *testing.T) {
	catalog := model.NewCatalog(objectstore.NewMemStore())
	require.NoError(t, runBucketCreate(context.Background(), catalog, "b1"))

	err := runBucketCreate(context.Background(), catalog, "b1")
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.KindOf(err))
}

func TestRunBucketDelete_RefusesWhenIndexesRemain(t *testing.T) {
	catalog := model.NewCatalog(objectstore.NewMemStore())
	require.NoError(t, runBucketCreate(context.Background(), catalog, "b1"))
	require.NoError(t, runIndexCreate(context.Background(), catalog, model.IndexDescriptor{
		Bucket: "b1", IndexName: "idx1", Dimension: 4, DataType: model.DataTypeFloat32,
		DistanceMetric: model.MetricEuclidean, IVFNList: 16, PQM: 2, PQNBits: 8, DefaultNProbe: 1,
	}))

	err := runBucketDelete(context.Background(), catalog, "b1")
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.KindOf(err))
}

func TestRunBucketDelete_SucceedsWhenEmpty(t *testing.T) {
	catalog := model.NewCatalog(objectstore.NewMemStore())
	require.NoError(t, runBucketCreate(context.Background(), catalog, "b1"))

	require.NoError(t, runBucketDelete(context.Background(), catalog, "b1"))
	_, err := catalog.GetBucket(context.Background(), "b1")
	assert.Equal(t, coreerr.KindNotFound, coreerr.KindOf(err))
}

func TestRenderBucketList_PlainAndJSON(t *testing.T) {
	buckets := []model.VectorBucket{{Name: "b1"}, {Name: "b2"}}

	var plain bytes.Buffer
	require.NoError(t, renderBucketList(&plain, buckets, false))
	assert.Contains(t, plain.String(), "b1")
	assert.Contains(t, plain.String(), "b2")

	var js bytes.Buffer
	require.NoError(t, renderBucketList(&js, buckets, true))
	assert.Contains(t, js.String(), `"name": "b1"`)
}
