// Package indexer implements IX, the background worker that groups
// un-consumed slices into size-bounded shards, trains one IVF-PQ index
// per shard, and publishes the result as a new manifest version (design
// §4.3).
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"os"

	"github.com/dreamware/vectorcore/internal/ann"
	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// ShardBuildInput is one shard-group's vectors, already partitioned by
// the build cycle, plus the per-row bookkeeping the keymap and lineage
// sidecar need.
type ShardBuildInput struct {
	ShardID   string
	Bucket    string
	Index     string
	Dimension int
	Metric    model.DistanceMetric
	IVFNList  int
	PQM       int
	PQNBits   int

	Keys          []string
	Embeddings    [][]float32
	SourceSliceID []string
	Metadata      []map[string]any
}

// BuildShard trains and publishes one shard's artifacts under
// vectors/{bucket}/{index}/shards/{shard_id}/ (design §4.3 step 5). It
// does not touch the manifest; the caller publishes the returned
// model.ShardRef once every shard-group in the build cycle has
// finished, leaving out the groups that failed.
func BuildShard(ctx context.Context, builder ann.Builder, store objectstore.Store, in ShardBuildInput) (model.ShardRef, error) {
	nShard := len(in.Keys)
	if nShard == 0 {
		return model.ShardRef{}, coreerr.Fatal("BuildShard called with zero vectors for shard %q", in.ShardID)
	}
	if in.PQM <= 0 || in.Dimension%in.PQM != 0 {
		return model.ShardRef{}, coreerr.Fatal("pq_m %d does not divide dimension %d for shard %q", in.PQM, in.Dimension, in.ShardID)
	}

	nlistEff := ann.EffectiveNList(nShard, in.IVFNList)

	flattened := make([]float32, 0, nShard*in.Dimension)
	for _, v := range in.Embeddings {
		row := v
		if in.Metric == model.MetricCosine {
			row = l2Normalize(v)
		}
		flattened = append(flattened, row...)
	}

	metric := ann.MetricL2
	if in.Metric == model.MetricCosine {
		metric = ann.MetricInnerProduct
	}
	cfg := ann.TrainConfig{Dimension: in.Dimension, NList: nlistEff, M: in.PQM, NBits: in.PQNBits, Metric: metric}

	index, err := builder.New(cfg)
	if err != nil {
		return model.ShardRef{}, coreerr.Fatal("constructing ANN index for shard %q: %v", in.ShardID, err)
	}
	defer index.Close()

	sampleIdx := ann.TrainingSampleIndices(nShard, nlistEff, in.ShardID)
	training := make([]float32, 0, len(sampleIdx)*in.Dimension)
	for _, i := range sampleIdx {
		training = append(training, flattened[i*in.Dimension:(i+1)*in.Dimension]...)
	}
	if err := index.Train(training); err != nil {
		return model.ShardRef{}, coreerr.Fatal("training ANN index for shard %q: %v", in.ShardID, err)
	}

	ids := make([]int64, nShard)
	for i := range ids {
		ids[i] = int64(i)
	}
	if err := index.AddWithIDs(flattened, ids); err != nil {
		return model.ShardRef{}, coreerr.Fatal("adding vectors to shard %q: %v", in.ShardID, err)
	}
	if index.Ntotal() != int64(nShard) {
		return model.ShardRef{}, coreerr.Fatal("shard %q ntotal %d disagrees with input count %d", in.ShardID, index.Ntotal(), nShard)
	}

	tmp, err := os.CreateTemp("", "vectorcore-shard-*.bin")
	if err != nil {
		return model.ShardRef{}, coreerr.Fatal("creating temp file for shard %q: %v", in.ShardID, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := index.Save(tmpPath); err != nil {
		return model.ShardRef{}, coreerr.Fatal("saving shard %q index: %v", in.ShardID, err)
	}
	indexBytes, err := os.ReadFile(tmpPath)
	if err != nil {
		return model.ShardRef{}, coreerr.Fatal("reading back saved shard %q index: %v", in.ShardID, err)
	}

	if err := store.Put(ctx, model.ShardIndexBinKey(in.Bucket, in.Index, in.ShardID), indexBytes, objectstore.PutOptions{}); err != nil {
		return model.ShardRef{}, err
	}

	shardConfig := model.ShardConfig{Metric: in.Metric, NList: nlistEff, M: in.PQM, NBits: in.PQNBits, Dimension: in.Dimension}
	configBytes, err := json.Marshal(shardConfig)
	if err != nil {
		return model.ShardRef{}, coreerr.Fatal("marshal shard config for %q: %v", in.ShardID, err)
	}
	if err := store.Put(ctx, model.ShardConfigKey(in.Bucket, in.Index, in.ShardID), configBytes, objectstore.PutOptions{}); err != nil {
		return model.ShardRef{}, err
	}

	metadataBytes, offsets, err := encodeMetadataJSONL(in.Metadata)
	if err != nil {
		return model.ShardRef{}, err
	}
	if err := store.Put(ctx, model.ShardMetadataKey(in.Bucket, in.Index, in.ShardID), metadataBytes, objectstore.PutOptions{}); err != nil {
		return model.ShardRef{}, err
	}

	entries := make([]model.ShardEntry, nShard)
	for i := range entries {
		entries[i] = model.ShardEntry{Key: in.Keys[i], MetadataOffset: offsets[i], SourceSliceID: in.SourceSliceID[i]}
	}
	keymapBytes, err := model.EncodeKeymap(entries)
	if err != nil {
		return model.ShardRef{}, err
	}
	if err := store.Put(ctx, model.ShardKeymapKey(in.Bucket, in.Index, in.ShardID), keymapBytes, objectstore.PutOptions{}); err != nil {
		return model.ShardRef{}, err
	}

	lineage := model.ShardLineage{ShardID: in.ShardID, SourceSlices: uniqueSorted(in.SourceSliceID)}
	if err := model.WriteShardLineage(ctx, store, in.Bucket, in.Index, lineage); err != nil {
		return model.ShardRef{}, err
	}

	checksum := checksumOf(indexBytes, keymapBytes)

	// The ready marker is the last object written: a shard without one is
	// invisible to both the query planner and the startup orphan scan's
	// "is this shard complete" check (design §4.3 step 5f).
	if err := store.Put(ctx, model.ShardReadyKey(in.Bucket, in.Index, in.ShardID), []byte(checksum), objectstore.PutOptions{}); err != nil {
		return model.ShardRef{}, err
	}

	return model.ShardRef{ShardID: in.ShardID, VectorCount: nShard, Checksum: checksum}, nil
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func encodeMetadataJSONL(metadata []map[string]any) ([]byte, []int64, error) {
	var buf []byte
	offsets := make([]int64, len(metadata))
	for i, m := range metadata {
		offsets[i] = int64(len(buf))
		line, err := json.Marshal(m)
		if err != nil {
			return nil, nil, coreerr.Fatal("marshal metadata row %d: %v", i, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return buf, offsets, nil
}

// checksumOf hashes a shard's artifacts into the checksum recorded in
// its model.ShardRef, detecting truncation or bit-rot at query time
// (design §7 Corruption kind).
func checksumOf(parts ...[]byte) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// fnvSum hashes s to a 32-bit value, used to build a short, deterministic
// shard_id suffix.
func fnvSum(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
