package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
	"github.com/dreamware/vectorcore/internal/query"
)

func TestSplitKeysCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitKeysCSV("a, b ,c"))
	assert.Nil(t, splitKeysCSV(""))
	assert.Nil(t, splitKeysCSV(" , "))
}

func TestRunDeleteVectors_BumpsManifestVersion(t *testing.T) {
	store := objectstore.NewMemStore()
	catalog := model.NewCatalog(store)
	require.NoError(t, runBucketCreate(context.Background(), catalog, "b1"))
	require.NoError(t, runIndexCreate(context.Background(), catalog, model.IndexDescriptor{
		Bucket: "b1", IndexName: "idx1", Dimension: 2, DataType: model.DataTypeFloat32,
		DistanceMetric: model.MetricEuclidean, IVFNList: 16, PQM: 1, PQNBits: 8, DefaultNProbe: 1,
		CreatedAt: time.Now().UTC(),
	}))

	before, err := model.ReadManifest(context.Background(), store, "b1", "idx1")
	require.NoError(t, err)

	planner := query.NewPlanner(store, catalog, nil, nil, time.Minute)
	require.NoError(t, runDeleteVectors(context.Background(), planner, "b1", "idx1", []string{"a", "b"}))

	after, err := model.ReadManifest(context.Background(), store, "b1", "idx1")
	require.NoError(t, err)
	assert.Equal(t, before.Version+1, after.Version)
	assert.Contains(t, after.Tombstones, "a")
	assert.Contains(t, after.Tombstones, "b")
}
