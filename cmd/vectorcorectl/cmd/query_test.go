package cmd

import (
	"bytes"
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
	"github.com/dreamware/vectorcore/internal/query"
)

func TestParseEmbeddingCSV(t *testing.T) {
	v, err := parseEmbeddingCSV("1, 2.5, -3")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5, -3}, v)

	_, err = parseEmbeddingCSV("")
	assert.Error(t, err)

	_, err = parseEmbeddingCSV("1,not-a-number")
	assert.Error(t, err)
}

func TestParseFilterJSON(t *testing.T) {
	f, err := parseFilterJSON(`{"category": "a"}`)
	require.NoError(t, err)
	assert.True(t, f.Matches(map[string]any{"category": "a"}))

	f, err = parseFilterJSON("")
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = parseFilterJSON("not json")
	assert.Error(t, err)
}

func TestRenderQueryResult_PlainAndJSON(t *testing.T) {
	result := query.QueryResult{Matches: []query.Match{{Key: "a", Score: 0.5}}}

	var plain bytes.Buffer
	require.NoError(t, renderQueryResult(&plain, result, false))
	assert.Contains(t, plain.String(), "a")

	var js bytes.Buffer
	require.NoError(t, renderQueryResult(&js, result, true))
	assert.Contains(t, js.String(), `"Key": "a"`)
}

func TestRunQuery_ReturnsNearestMatch(t *testing.T) {
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
		{Key: "near", Embedding: []float32{1, 1}},
		{Key: "far", Embedding: []float32{10, 10}},
	})
	require.NoError(t, err)

	cycle := indexer.NewCycle(store, catalog, ann.NewFakeBuilder(), indexer.Config{
		SMax: 10_000, BuildMinThreshold: 1, BuildIdleTimeout: time.Hour, LeaseTTL: time.Minute,
	}, nil)
	_, err = cycle.Run(context.Background(), "b1", "idx1")
	require.NoError(t, err)

	cache, err := query.NewArtifactCache(store, ann.NewFakeBuilder(), t.TempDir(), 1<<30)
	require.NoError(t, err)
	planner := query.NewPlanner(store, catalog, cache, nil, time.Minute)

	result, err := runQuery(context.Background(), planner, "b1", "idx1", query.Query{
		Embedding: []float32{1, 2}, TopK: 1,
	})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "near", result.Matches[0].Key)
}
