package ann

import (
	"math"
	"sort"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

// FakeBuilder builds an exact brute-force Index implementing the same
// ann.Index contract as FaissIndex. It exists so the indexer and query
// planner's tests exercise real train/add/search/save/load code paths
// without linking the native faiss library, mirroring how the teacher
// corpus tests against a real in-process index rather than a
// hand-rolled mock of each caller's expectations.
type FakeBuilder struct{}

// NewFakeBuilder returns the brute-force Builder used in tests.
func NewFakeBuilder() FakeBuilder {
	return FakeBuilder{}
}

func (FakeBuilder) New(cfg TrainConfig) (Index, error) {
	return &FakeIndex{cfg: cfg}, nil
}

func (FakeBuilder) Load(path string, cfg TrainConfig) (Index, error) {
	return loadFakeIndex(path, cfg)
}

// FakeIndex stores every added vector and scans all of them on Search,
// ignoring nprobe (brute force visits every cell by construction). It
// is exact, so it also serves as a ground truth for testing the query
// planner's merge and rank logic independent of ANN recall.
type FakeIndex struct {
	cfg     TrainConfig
	ids     []int64
	vectors [][]float32
}

func (f *FakeIndex) Train([]float32) error {
	// Brute force needs no training; satisfies the Index contract so
	// callers don't special-case it.
	return nil
}

func (f *FakeIndex) AddWithIDs(vectors []float32, ids []int64) error {
	n := len(ids)
	dim := f.cfg.Dimension
	for i := 0; i < n; i++ {
		row := make([]float32, dim)
		copy(row, vectors[i*dim:(i+1)*dim])
		f.vectors = append(f.vectors, row)
		f.ids = append(f.ids, ids[i])
	}
	return nil
}

func (f *FakeIndex) Search(query []float32, k int, _ int) (SearchResult, error) {
	type scored struct {
		dist float32
		id   int64
	}
	scores := make([]scored, len(f.ids))
	for i, v := range f.vectors {
		scores[i] = scored{dist: distance(f.cfg.Metric, query, v), id: f.ids[i]}
	}

	if f.cfg.Metric == MetricInnerProduct {
		sort.Slice(scores, func(a, b int) bool { return scores[a].dist > scores[b].dist })
	} else {
		sort.Slice(scores, func(a, b int) bool { return scores[a].dist < scores[b].dist })
	}

	if k > len(scores) {
		k = len(scores)
	}
	result := SearchResult{Distances: make([]float32, k), Ordinals: make([]int64, k)}
	for i := 0; i < k; i++ {
		result.Distances[i] = scores[i].dist
		result.Ordinals[i] = scores[i].id
	}
	return result, nil
}

func (f *FakeIndex) Reconstruct(id int64) ([]float32, error) {
	for i, existing := range f.ids {
		if existing == id {
			return f.vectors[i], nil
		}
	}
	return nil, coreerr.NotFound("ordinal %d not present in fake index", id)
}

func (f *FakeIndex) Save(path string) error {
	return saveFakeIndex(path, f)
}

func (f *FakeIndex) Ntotal() int64 {
	return int64(len(f.ids))
}

func (f *FakeIndex) Close() {}

func distance(metric Metric, a, b []float32) float32 {
	if metric == MetricInnerProduct {
		var sum float32
		for i := range a {
			sum += a[i] * b[i]
		}
		return sum
	}
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}
