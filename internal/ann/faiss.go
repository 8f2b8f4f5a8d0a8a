package ann

import (
	"fmt"
	"os"
	"path/filepath"

	faiss "github.com/blevesearch/go-faiss"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

// FaissBuilder constructs IVF-PQ indexes via go-faiss's factory-string
// API, the same library bleve pulls in for its experimental vector
// index support. A factory string like "IVF100,PQ8x8" fully describes
// the coarse quantizer and PQ layout in one call, matching how the
// shard's nlist_eff/pq_m_eff/pq_nbits_eff are already computed by the
// indexer before a FaissIndex is built.
type FaissBuilder struct{}

// NewFaissBuilder returns the default go-faiss-backed Builder.
func NewFaissBuilder() FaissBuilder {
	return FaissBuilder{}
}

// New builds an untrained IVF-PQ index for cfg.
func (FaissBuilder) New(cfg TrainConfig) (Index, error) {
	factory := factoryString(cfg)
	metric := faissMetric(cfg.Metric)

	idx, err := faiss.IndexFactory(cfg.Dimension, factory, metric)
	if err != nil {
		return nil, coreerr.Fatal("faiss.IndexFactory(%d, %q): %v", cfg.Dimension, factory, err)
	}
	return &FaissIndex{idx: idx, cfg: cfg}, nil
}

// Load reconstructs a previously-saved index from path.
func (FaissBuilder) Load(path string, cfg TrainConfig) (Index, error) {
	idx, err := faiss.ReadIndex(path, 0)
	if err != nil {
		return nil, coreerr.Corruption("reading faiss index %q: %v", path, err)
	}
	if idx.D() != cfg.Dimension {
		idx.Close()
		return nil, coreerr.Corruption("index %q dimension %d does not match shard config dimension %d", path, idx.D(), cfg.Dimension)
	}
	return &FaissIndex{idx: idx, cfg: cfg}, nil
}

func factoryString(cfg TrainConfig) string {
	return fmt.Sprintf("IVF%d,PQ%dx%d", cfg.NList, cfg.M, cfg.NBits)
}

func faissMetric(m Metric) int {
	if m == MetricInnerProduct {
		return faiss.MetricInnerProduct
	}
	return faiss.MetricL2
}

// FaissIndex wraps a go-faiss Index, implementing ann.Index.
type FaissIndex struct {
	idx faiss.Index
	cfg TrainConfig
}

func (f *FaissIndex) Train(vectors []float32) error {
	if err := f.idx.Train(vectors); err != nil {
		return coreerr.Fatal("training faiss index (nlist=%d m=%d nbits=%d): %v", f.cfg.NList, f.cfg.M, f.cfg.NBits, err)
	}
	return nil
}

func (f *FaissIndex) AddWithIDs(vectors []float32, ids []int64) error {
	if err := f.idx.AddWithIDs(vectors, ids); err != nil {
		return coreerr.Fatal("adding %d vectors to faiss index: %v", len(ids), err)
	}
	return nil
}

func (f *FaissIndex) Search(query []float32, k int, nprobe int) (SearchResult, error) {
	if err := setNProbe(f.idx, nprobe); err != nil {
		return SearchResult{}, err
	}

	distances, labels, err := f.idx.Search(query, int64(k))
	if err != nil {
		return SearchResult{}, coreerr.Transient(err, "faiss search")
	}
	return SearchResult{Distances: distances, Ordinals: labels}, nil
}

func (f *FaissIndex) Reconstruct(id int64) ([]float32, error) {
	vec, err := f.idx.Reconstruct(id)
	if err != nil {
		return nil, coreerr.Corruption("reconstructing ordinal %d: %v", id, err)
	}
	return vec, nil
}

func (f *FaissIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return coreerr.Fatal("create shard artifact directory: %v", err)
	}

	tmp := path + ".tmp"
	if err := faiss.WriteIndex(f.idx, tmp); err != nil {
		return coreerr.Fatal("writing faiss index to %q: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return coreerr.Fatal("renaming faiss index into place at %q: %v", path, err)
	}
	return nil
}

func (f *FaissIndex) Ntotal() int64 {
	return f.idx.Ntotal()
}

func (f *FaissIndex) Close() {
	f.idx.Close()
}

// setNProbe applies nprobe via faiss's ParameterSpace, which mirrors
// the C++ API's set_index_parameter and works uniformly whether the
// index is a bare IndexIVF or one wrapped by an ID map, avoiding a type
// assertion to a specific concrete IVF type.
func setNProbe(idx faiss.Index, nprobe int) error {
	ps, err := faiss.NewParameterSpace()
	if err != nil {
		return coreerr.Fatal("creating faiss parameter space: %v", err)
	}
	defer ps.Close()

	if err := ps.SetIndexParameter(idx, "nprobe", float64(nprobe)); err != nil {
		return coreerr.Fatal("setting nprobe=%d: %v", nprobe, err)
	}
	return nil
}
