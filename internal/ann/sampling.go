package ann

import (
	"hash/fnv"
	"math"
)

// EffectiveNList clamps the training cluster count to actual shard
// size, bounded by the index descriptor's configured ivf_nlist (design
// §4.3 step 5a): nlist_eff = clamp(round(sqrt(nShard)), 16, ivfNList).
func EffectiveNList(nShard, ivfNList int) int {
	eff := int(math.Round(math.Sqrt(float64(nShard))))
	if eff < 16 {
		eff = 16
	}
	if eff > ivfNList {
		eff = ivfNList
	}
	return eff
}

// TrainingSampleIndices selects up to min(nShard, 30*nlistEff) row
// indices from a shard's nShard vectors via deterministic stride
// sampling, seeded by shardID's hash (design §4.3 step 5d), so
// re-running a build on the same shard input picks the same sample.
func TrainingSampleIndices(nShard, nlistEff int, shardID string) []int {
	maxSamples := 30 * nlistEff
	if maxSamples >= nShard {
		indices := make([]int, nShard)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	stride := nShard / maxSamples
	if stride < 1 {
		stride = 1
	}
	offset := int(seedFromShardID(shardID) % uint64(stride))

	var indices []int
	for i := offset; i < nShard && len(indices) < maxSamples; i += stride {
		indices = append(indices, i)
	}
	return indices
}

// ClampNProbe bounds a caller-requested nprobe to [1, nlistEff] without
// erroring (design §4.4, boundary behavior "nprobe > nlist_eff -> clamp").
func ClampNProbe(nprobe, nlistEff int) int {
	if nprobe < 1 {
		return 1
	}
	if nprobe > nlistEff {
		return nlistEff
	}
	return nprobe
}

func seedFromShardID(shardID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(shardID))
	return h.Sum64()
}
