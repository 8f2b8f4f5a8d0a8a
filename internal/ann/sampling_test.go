package ann

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveNList_ClampsLowerBound(t *testing.T) {
	assert.Equal(t, 16, EffectiveNList(9, 100))
}

func TestEffectiveNList_ClampsUpperBound(t *testing.T) {
	assert.Equal(t, 100, EffectiveNList(1_000_000, 100))
}

func TestEffectiveNList_RoundsSqrt(t *testing.T) {
	assert.Equal(t, 32, EffectiveNList(1024, 65536))
}

func TestTrainingSampleIndices_ReturnsAllWhenShardSmall(t *testing.T) {
	indices := TrainingSampleIndices(50, 16, "shard-001")
	assert.Len(t, indices, 50)
}

func TestTrainingSampleIndices_StridesWhenShardLarge(t *testing.T) {
	indices := TrainingSampleIndices(100_000, 16, "shard-001")
	assert.LessOrEqual(t, len(indices), 30*16)
	assert.Greater(t, len(indices), 0)
}

func TestTrainingSampleIndices_DeterministicForSameShardID(t *testing.T) {
	a := TrainingSampleIndices(100_000, 16, "shard-001")
	b := TrainingSampleIndices(100_000, 16, "shard-001")
	assert.Equal(t, a, b)
}

func TestTrainingSampleIndices_DiffersAcrossShardIDs(t *testing.T) {
	a := TrainingSampleIndices(100_000, 16, "shard-001")
	b := TrainingSampleIndices(100_000, 16, "shard-002")
	assert.NotEqual(t, a, b, "different shard ids should pick different strides/offsets")
}

func TestClampNProbe(t *testing.T) {
	assert.Equal(t, 1, ClampNProbe(0, 100))
	assert.Equal(t, 100, ClampNProbe(500, 100))
	assert.Equal(t, 10, ClampNProbe(10, 100))
}
