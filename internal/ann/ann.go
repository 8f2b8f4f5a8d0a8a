// Package ann defines the abstract approximate-nearest-neighbor
// capability every shard's trained index exposes: train, add_with_ids,
// search, save, load (design §9's "mock vs real ANN backend" note).
// Any implementation providing this capability with documented
// recall/QPS characteristics is acceptable; the indexer and query
// planner depend only on this interface, never on a concrete backend.
package ann

// Metric selects the distance the index was trained and searched
// under.
type Metric int

const (
	MetricL2 Metric = iota
	MetricInnerProduct
)

// TrainConfig parameters describe one shard's IVF-PQ index, computed
// by the indexer from the index descriptor and the shard's actual
// vector count (design §4.3 step 5a-b: nlist_eff and pq_m_eff/pq_nbits_eff
// are clamped/derived before this struct is built).
type TrainConfig struct {
	Dimension int
	NList     int
	M         int
	NBits     int
	Metric    Metric
}

// SearchResult is one shard's raw search output before key resolution:
// parallel slices of distance and internal ordinal, ordered best-first.
type SearchResult struct {
	Distances []float32
	Ordinals  []int64
}

// Index is the per-shard trained ANN structure. Implementations are
// not safe for concurrent Train/Add calls but Search may be called
// concurrently with itself once training and adds are complete
// (matching the query planner's read-only access pattern after a
// shard is published).
type Index interface {
	// Train fits the coarse quantizer and PQ codebooks on the given
	// training vectors (design §4.3 step 5d: a deterministic stride
	// sample, not the full shard).
	Train(vectors []float32) error
	// AddWithIDs adds vectors (flattened, row-major) assigning them the
	// given internal ordinals, which must be 0..N-1 for the shard
	// (design §4.3 step 5e).
	AddWithIDs(vectors []float32, ids []int64) error
	// Search returns up to k nearest neighbors of the flattened query
	// batch at the given nprobe (IVF cells visited per query).
	Search(query []float32, k int, nprobe int) (SearchResult, error)
	// Reconstruct returns the (possibly PQ-lossy) embedding stored at
	// internal ordinal id, backing return_data (design §4.4). Query
	// Non-goals already waive exact recall, so a PQ-reconstructed vector
	// satisfies the same contract a trained index's search results do.
	Reconstruct(id int64) ([]float32, error)
	// Save persists the trained index to path.
	Save(path string) error
	// Ntotal returns the number of vectors added, used by the
	// keymap-length invariant check (design §8: keymap.length ==
	// index.bin.ntotal == metadata.jsonl.lines).
	Ntotal() int64
	// Close releases any backend-native resources. Safe to call once;
	// calling Search after Close is undefined.
	Close()
}

// Builder constructs a fresh, untrained Index for cfg. Swapping the ANN
// backend means swapping the Builder a caller passes to the indexer,
// nothing else.
type Builder interface {
	New(cfg TrainConfig) (Index, error)
	// Load reconstructs a previously-saved Index from path, given the
	// config it was trained with (read from the shard's sidecar
	// index.config.json, not re-derived).
	Load(path string, cfg TrainConfig) (Index, error)
}
