package ann

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/dreamware/vectorcore/internal/coreerr"
)

// fakeIndexSnapshot is the gob-encoded on-disk form of a FakeIndex,
// mirroring the teacher's atomic temp-then-rename save pattern for its
// HNSW store.
type fakeIndexSnapshot struct {
	IDs     []int64
	Vectors [][]float32
}

func saveFakeIndex(path string, idx *FakeIndex) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return coreerr.Fatal("create shard artifact directory: %v", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return coreerr.Fatal("create temp index file %q: %v", tmp, err)
	}

	snapshot := fakeIndexSnapshot{IDs: idx.ids, Vectors: idx.vectors}
	if err := gob.NewEncoder(f).Encode(snapshot); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return coreerr.Fatal("encode fake index: %v", err)
	}
	if err := f.Close(); err != nil {
		return coreerr.Fatal("close temp index file %q: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return coreerr.Fatal("rename temp index file into place at %q: %v", path, err)
	}
	return nil
}

func loadFakeIndex(path string, cfg TrainConfig) (*FakeIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, coreerr.NotFound("fake index file %q: %v", path, err)
	}
	defer f.Close()

	var snapshot fakeIndexSnapshot
	if err := gob.NewDecoder(f).Decode(&snapshot); err != nil {
		return nil, coreerr.Corruption("decode fake index %q: %v", path, err)
	}
	return &FakeIndex{cfg: cfg, ids: snapshot.IDs, vectors: snapshot.Vectors}, nil
}
