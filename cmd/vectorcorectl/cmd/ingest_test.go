package cmd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/ingest"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

func TestDecodeVectorRecordsJSONL_ParsesEachLine(t *testing.T) {
	input := `{"key":"a","embedding":[1,2],"metadata":{"c":"x"}}
{"key":"b","embedding":[3,4]}
`
	records, err := decodeVectorRecordsJSONL(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Key)
	assert.Equal(t, []float32{1, 2}, records[0].Embedding)
	assert.Equal(t, "x", records[0].Metadata["c"])
	assert.Equal(t, "b", records[1].Key)
}

func TestDecodeVectorRecordsJSONL_SkipsBlankLines(t *testing.T) {
	input := "{\"key\":\"a\",\"embedding\":[1]}\n\n{\"key\":\"b\",\"embedding\":[2]}\n"
	records, err := decodeVectorRecordsJSONL(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDecodeVectorRecordsJSONL_RejectsInvalidJSON(t *testing.T) {
	_, err := decodeVectorRecordsJSONL(strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestRunIngest_WritesSlice(t *testing.T) {
	store := objectstore.NewMemStore()
	catalog := model.NewCatalog(store)
	require.NoError(t, runBucketCreate(context.Background(), catalog, "b1"))
	require.NoError(t, runIndexCreate(context.Background(), catalog, model.IndexDescriptor{
		Bucket: "b1", IndexName: "idx1", Dimension: 2, DataType: model.DataTypeFloat32,
		DistanceMetric: model.MetricEuclidean, IVFNList: 16, PQM: 1, PQNBits: 8, DefaultNProbe: 1,
		CreatedAt: time.Now().UTC(),
	}))

	pipeline := ingest.NewPipeline(store, catalog, 1000)
	records := []model.VectorRecord{{Key: "a", Embedding: []float32{1, 2}}}

	result, err := runIngest(context.Background(), pipeline, "b1", "idx1", records)
	require.NoError(t, err)
	assert.Equal(t, 1, result.VectorCount)
	assert.NotEmpty(t, result.SliceID)
}
