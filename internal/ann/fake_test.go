package ann

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

func TestFakeIndex_SearchReturnsExactNearestByL2(t *testing.T) {
	builder := NewFakeBuilder()
	idx, err := builder.New(TrainConfig{Dimension: 2, Metric: MetricL2})
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Train(nil))
	vectors := []float32{0, 0, 1, 0, 5, 5}
	require.NoError(t, idx.AddWithIDs(vectors, []int64{0, 1, 2}))

	result, err := idx.Search([]float32{0.1, 0}, 2, 1)
	require.NoError(t, err)
	require.Len(t, result.Ordinals, 2)
	assert.Equal(t, int64(0), result.Ordinals[0])
	assert.Equal(t, int64(1), result.Ordinals[1])
}

func TestFakeIndex_SearchReturnsExactNearestByInnerProduct(t *testing.T) {
	builder := NewFakeBuilder()
	idx, err := builder.New(TrainConfig{Dimension: 2, Metric: MetricInnerProduct})
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.AddWithIDs([]float32{1, 0, 0, 1, -1, 0}, []int64{10, 11, 12}))

	result, err := idx.Search([]float32{1, 0}, 1, 1)
	require.NoError(t, err)
	require.Len(t, result.Ordinals, 1)
	assert.Equal(t, int64(10), result.Ordinals[0])
}

func TestFakeIndex_SearchCapsAtAvailableVectors(t *testing.T) {
	builder := NewFakeBuilder()
	idx, err := builder.New(TrainConfig{Dimension: 1, Metric: MetricL2})
	require.NoError(t, err)
	require.NoError(t, idx.AddWithIDs([]float32{1, 2}, []int64{0, 1}))

	result, err := idx.Search([]float32{1}, 10, 1)
	require.NoError(t, err)
	assert.Len(t, result.Ordinals, 2)
}

func TestFakeIndex_SaveAndLoadRoundTrip(t *testing.T) {
	builder := NewFakeBuilder()
	cfg := TrainConfig{Dimension: 2, Metric: MetricL2}
	idx, err := builder.New(cfg)
	require.NoError(t, err)
	require.NoError(t, idx.AddWithIDs([]float32{1, 1, 2, 2}, []int64{5, 6}))

	path := filepath.Join(t.TempDir(), "shard", "index.bin")
	require.NoError(t, idx.Save(path))

	loaded, err := builder.Load(path, cfg)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, int64(2), loaded.Ntotal())
	result, err := loaded.Search([]float32{1, 1}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Ordinals[0])
}

func TestFakeIndex_LoadMissingFileReturnsNotFound(t *testing.T) {
	builder := NewFakeBuilder()
	_, err := builder.Load(filepath.Join(t.TempDir(), "missing.bin"), TrainConfig{Dimension: 2})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindNotFound, coreerr.KindOf(err))
}
