// Package query implements QP, the fan-out search planner that serves
// Query, GetVectors, ListVectors, and DeleteVectors against a
// published manifest's shards (design §4.4).
package query

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dreamware/vectorcore/internal/ann"
	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/metrics"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// cachedShard is one shard's materialized local artifacts: its loaded
// ANN index and decoded keymap, plus a pin count so a search in flight
// is never evicted out from under it.
type cachedShard struct {
	shardID   string
	index     ann.Index
	entries   []model.ShardEntry
	sizeBytes int64

	// nlistEff is the shard's trained cluster count (model.ShardConfig.NList),
	// the upper bound a query-time nprobe override is clamped to (design
	// §4.4, "nprobe > nlist_eff -> clamp").
	nlistEff int

	mu   sync.Mutex
	pins int
}

// ArtifactCache materializes a shard's index.bin onto local disk,
// decodes its keymap.bin in memory, and keeps a byte-budgeted LRU of
// the loaded result in
// memory, so a hot shard's ANN index is decoded once rather than once
// per query (design §4.4 step 1: "LRU over index.bin + index.config.json
// + keymap.bin"). metadata.jsonl is deliberately not cached here; it is
// fetched by byte range on demand once a search narrows to specific
// ordinals (design §4.4 step 4).
type ArtifactCache struct {
	store         objectstore.Store
	builder       ann.Builder
	dir           string
	capacityBytes int64

	// fileLock guards the local cache directory across processes: two
	// query planners on the same node racing to materialize the same
	// shard must never interleave writes to the same local file.
	fileLock *flock.Flock

	mu     sync.Mutex
	order  *lru.Cache[string, struct{}]
	shards map[string]*cachedShard
	used   int64
}

// NewArtifactCache creates a cache rooted at dir, bounded to
// capacityBytes of materialized shard artifacts.
func NewArtifactCache(store objectstore.Store, builder ann.Builder, dir string, capacityBytes int64) (*ArtifactCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, coreerr.Fatal("creating shard artifact cache dir %q: %v", dir, err)
	}
	// The access-order tracker is never size-bound itself; eviction is
	// driven entirely by the byte budget in evictLocked.
	order, err := lru.New[string, struct{}](1 << 20)
	if err != nil {
		return nil, coreerr.Fatal("constructing shard cache order tracker: %v", err)
	}
	return &ArtifactCache{
		store:         store,
		builder:       builder,
		dir:           dir,
		capacityBytes: capacityBytes,
		fileLock:      flock.New(filepath.Join(dir, ".cache.lock")),
		order:         order,
		shards:        make(map[string]*cachedShard),
	}, nil
}

// Acquire returns the materialized shard for ref, pinning it against
// eviction until the returned release func is called. A cache hit never
// touches the object store or local disk.
func (c *ArtifactCache) Acquire(ctx context.Context, bucket, index string, ref model.ShardRef, cfg model.ShardConfig) (*cachedShard, func(), error) {
	if s, ok := c.pin(ref.ShardID); ok {
		metrics.ArtifactCacheHitsTotal.WithLabelValues("hit").Inc()
		return s, func() { c.release(ref.ShardID) }, nil
	}

	if err := c.fileLock.Lock(); err != nil {
		return nil, nil, coreerr.Transient(err, "locking shard artifact cache")
	}
	defer c.fileLock.Unlock()

	// Another goroutine may have materialized the shard while this one
	// waited for the file lock.
	if s, ok := c.pin(ref.ShardID); ok {
		metrics.ArtifactCacheHitsTotal.WithLabelValues("hit").Inc()
		return s, func() { c.release(ref.ShardID) }, nil
	}

	metrics.ArtifactCacheHitsTotal.WithLabelValues("miss").Inc()
	shard, err := c.materialize(ctx, bucket, index, ref, cfg)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	shard.pins = 1
	c.shards[ref.ShardID] = shard
	c.order.Add(ref.ShardID, struct{}{})
	c.used += shard.sizeBytes
	c.evictLocked()
	c.mu.Unlock()

	return shard, func() { c.release(ref.ShardID) }, nil
}

func (c *ArtifactCache) pin(shardID string) (*cachedShard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shards[shardID]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.pins++
	s.mu.Unlock()
	c.order.Add(shardID, struct{}{})
	return s, true
}

func (c *ArtifactCache) release(shardID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shards[shardID]
	if !ok {
		return
	}
	s.mu.Lock()
	s.pins--
	s.mu.Unlock()
	c.evictLocked()
}

// evictLocked drops least-recently-used, unpinned shards until the
// cache is back under its byte budget, or until every remaining shard
// is pinned. Called with c.mu held.
func (c *ArtifactCache) evictLocked() {
	for c.used > c.capacityBytes {
		victim := ""
		for _, key := range c.order.Keys() {
			s, ok := c.shards[key]
			if !ok {
				continue
			}
			s.mu.Lock()
			pinned := s.pins > 0
			s.mu.Unlock()
			if !pinned {
				victim = key
				break
			}
		}
		if victim == "" {
			return
		}
		s := c.shards[victim]
		s.index.Close()
		_ = os.Remove(c.localPath(victim))
		c.used -= s.sizeBytes
		delete(c.shards, victim)
		c.order.Remove(victim)
	}
}

func (c *ArtifactCache) localPath(shardID string) string {
	return filepath.Join(c.dir, shardID+".bin")
}

func (c *ArtifactCache) materialize(ctx context.Context, bucket, index string, ref model.ShardRef, cfg model.ShardConfig) (*cachedShard, error) {
	indexBytes, err := c.store.Get(ctx, model.ShardIndexBinKey(bucket, index, ref.ShardID), nil)
	if err != nil {
		return nil, err
	}
	keymapBytes, err := c.store.Get(ctx, model.ShardKeymapKey(bucket, index, ref.ShardID), nil)
	if err != nil {
		return nil, err
	}
	if got := shardChecksum(indexBytes, keymapBytes); got != ref.Checksum {
		return nil, coreerr.Corruption("shard %q artifact checksum %q disagrees with manifest checksum %q", ref.ShardID, got, ref.Checksum)
	}

	entries, err := model.DecodeKeymap(keymapBytes)
	if err != nil {
		return nil, err
	}
	if len(entries) != ref.VectorCount {
		return nil, coreerr.Corruption("shard %q keymap length %d disagrees with manifest vector_count %d", ref.ShardID, len(entries), ref.VectorCount)
	}

	localPath := c.localPath(ref.ShardID)
	if err := os.WriteFile(localPath, indexBytes, 0o644); err != nil {
		return nil, coreerr.Fatal("writing local shard artifact %q: %v", localPath, err)
	}

	metric := ann.MetricL2
	if cfg.Metric == model.MetricCosine {
		metric = ann.MetricInnerProduct
	}
	idx, err := c.builder.Load(localPath, ann.TrainConfig{Dimension: cfg.Dimension, NList: cfg.NList, M: cfg.M, NBits: cfg.NBits, Metric: metric})
	if err != nil {
		return nil, coreerr.Corruption("loading shard %q index: %v", ref.ShardID, err)
	}
	if idx.Ntotal() != int64(ref.VectorCount) {
		idx.Close()
		return nil, coreerr.Corruption("shard %q loaded ntotal %d disagrees with manifest vector_count %d", ref.ShardID, idx.Ntotal(), ref.VectorCount)
	}

	return &cachedShard{
		shardID:   ref.ShardID,
		index:     idx,
		entries:   entries,
		sizeBytes: int64(len(indexBytes) + len(keymapBytes)),
		nlistEff:  cfg.NList,
	}, nil
}

// Close releases every currently materialized shard's ANN index. It
// does not remove local cache files; a later Acquire fetches the
// shard's artifacts from the object store again either way.
func (c *ArtifactCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.shards {
		s.index.Close()
	}
	c.shards = make(map[string]*cachedShard)
	c.used = 0
}

// shardChecksum reproduces the indexer's shard checksum so a cache miss
// can detect bit-rot or truncation in the fetched artifacts before
// loading them.
func shardChecksum(parts ...[]byte) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
