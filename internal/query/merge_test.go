package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dreamware/vectorcore/internal/model"
)

func TestMergeTopK_OrdersByDistanceAscendingForEuclidean(t *testing.T) {
	perShard := [][]candidate{
		{{Key: "a", Score: 2.0, ShardID: "s1", Ordinal: 0}},
		{{Key: "b", Score: 1.0, ShardID: "s1", Ordinal: 1}},
	}
	merged := mergeTopK(model.MetricEuclidean, 2, perShard)
	assert.Equal(t, []string{"b", "a"}, keysOf(merged))
}

func TestMergeTopK_OrdersByScoreDescendingForCosine(t *testing.T) {
	perShard := [][]candidate{
		{{Key: "a", Score: 0.2, ShardID: "s1", Ordinal: 0}},
		{{Key: "b", Score: 0.9, ShardID: "s1", Ordinal: 1}},
	}
	merged := mergeTopK(model.MetricCosine, 2, perShard)
	assert.Equal(t, []string{"b", "a"}, keysOf(merged))
}

func TestMergeTopK_TiebreaksByShardThenOrdinal(t *testing.T) {
	perShard := [][]candidate{
		{{Key: "a", Score: 1.0, ShardID: "s2", Ordinal: 0}},
		{{Key: "b", Score: 1.0, ShardID: "s1", Ordinal: 5}},
		{{Key: "c", Score: 1.0, ShardID: "s1", Ordinal: 1}},
	}
	merged := mergeTopK(model.MetricEuclidean, 3, perShard)
	assert.Equal(t, []string{"c", "b", "a"}, keysOf(merged))
}

func TestMergeTopK_TruncatesToTopK(t *testing.T) {
	perShard := [][]candidate{
		{{Key: "a", Score: 1.0}, {Key: "b", Score: 2.0}, {Key: "c", Score: 3.0}},
	}
	merged := mergeTopK(model.MetricEuclidean, 2, perShard)
	assert.Equal(t, []string{"a", "b"}, keysOf(merged))
}

func TestMergeTopK_DedupeByKeyPrefersGreatestSourceSliceID(t *testing.T) {
	perShard := [][]candidate{
		{{Key: "a", Score: 1.0, ShardID: "s1", SourceSliceID: "00000000000000000001-aaaa"}},
		{{Key: "a", Score: 5.0, ShardID: "s2", SourceSliceID: "00000000000000000002-bbbb"}},
	}
	merged := mergeTopK(model.MetricEuclidean, 2, perShard)
	assert.Len(t, merged, 1)
	assert.Equal(t, "s2", merged[0].ShardID)
}

func keysOf(cands []candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Key
	}
	return out
}
