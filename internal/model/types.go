// Package model defines the data model shared by every vectorcore
// component: vector buckets, index descriptors, slices, shards, and the
// manifest that ties them together (design §3).
package model

import "time"

// DataType is the element type of a stored embedding. FLOAT32 is the
// only supported type today; the field exists so a new one can be
// added without changing the wire shape.
type DataType string

// DistanceMetric selects how query similarity is scored.
type DistanceMetric string

const (
	DataTypeFloat32 DataType = "FLOAT32"

	MetricCosine    DistanceMetric = "COSINE"
	MetricEuclidean DistanceMetric = "EUCLIDEAN"
)

// SliceFormat is the on-disk encoding of a raw ingestion slice.
type SliceFormat string

const (
	SliceFormatJSONL   SliceFormat = "JSONL"
	SliceFormatParquet SliceFormat = "PARQUET"
)

// VectorBucket is the top-level namespace containing named indexes.
type VectorBucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// IndexDescriptor is the immutable (bar DefaultNProbe) configuration of
// one index within a bucket.
type IndexDescriptor struct {
	Bucket         string         `json:"bucket"`
	IndexName      string         `json:"index_name"`
	Dimension      int            `json:"dimension"`
	DataType       DataType       `json:"data_type"`
	DistanceMetric DistanceMetric `json:"distance_metric"`
	IVFNList       int            `json:"ivf_nlist"`
	PQM            int            `json:"pq_m"`
	PQNBits        int            `json:"pq_nbits"`
	DefaultNProbe  int            `json:"default_nprobe"`
	CreatedAt      time.Time      `json:"created_at"`
}

// VectorRecord is one client-submitted vector: a key unique within its
// slice, its embedding, and arbitrary user metadata.
type VectorRecord struct {
	Key       string         `json:"key"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Slice is one immutable ingestion unit written by the ingestion
// pipeline and later consumed by the indexer.
type Slice struct {
	SliceID     string      `json:"slice_id"`
	Bucket      string      `json:"bucket"`
	IndexName   string      `json:"index_name"`
	VectorCount int         `json:"vector_count"`
	Format      SliceFormat `json:"format"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ShardConfig is the sidecar persisted alongside a shard's trained
// index, so a reader of shard artifacts never has to guess the
// parameters the index was built with.
type ShardConfig struct {
	Metric    DistanceMetric `json:"metric"`
	NList     int            `json:"nlist"`
	M         int            `json:"m"`
	NBits     int            `json:"nbits"`
	Dimension int            `json:"dimension"`
}

// ShardRef is the manifest's pointer to one published shard: enough to
// locate and validate its artifacts without opening them.
type ShardRef struct {
	ShardID     string `json:"shard_id"`
	VectorCount int    `json:"vector_count"`
	Checksum    string `json:"checksum"`
}

// ShardEntry is one row of a shard's keymap: the mapping from internal
// ordinal (the ANN index's own row number) back to the client key and
// the byte offset of that vector's metadata record, plus the slice_id
// it originated from so the query planner can resolve "last writer
// wins" across re-submitted keys.
type ShardEntry struct {
	Key            string `json:"key"`
	MetadataOffset int64  `json:"metadata_offset"`
	SourceSliceID  string `json:"source_slice_id"`
}

// Manifest is the single mutable, versioned pointer to an index's
// current set of published shards and tombstones.
type Manifest struct {
	IndexDescriptor IndexDescriptor      `json:"index_descriptor"`
	Shards          []ShardRef           `json:"shards"`
	Tombstones      map[string]time.Time `json:"tombstones"`
	Version         int                  `json:"version"`
}

// Clone returns a deep copy so callers can build the next manifest
// version without mutating the one currently in use.
func (m Manifest) Clone() Manifest {
	out := Manifest{
		IndexDescriptor: m.IndexDescriptor,
		Version:         m.Version,
		Shards:          make([]ShardRef, len(m.Shards)),
		Tombstones:      make(map[string]time.Time, len(m.Tombstones)),
	}
	copy(out.Shards, m.Shards)
	for k, v := range m.Tombstones {
		out.Tombstones[k] = v
	}
	return out
}
