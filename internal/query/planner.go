package query

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/vectorcore/internal/ann"
	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/metrics"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// Planner implements QP: query, get_vectors, list_vectors, and
// delete_vectors against a published manifest's shards (design §4.4).
// It holds no per-request state; a single Planner is shared by every
// concurrent caller against a given store.
type Planner struct {
	store    objectstore.Store
	catalog  *model.Catalog
	cache    *ArtifactCache
	breakers *coreerr.ShardBreakerRegistry
	leaseTTL time.Duration
}

// NewPlanner builds a Planner. breakers may be nil, in which case a
// registry with the default quarantine thresholds is created. The ANN
// backend is fixed by cache's own Builder; the planner never
// constructs an Index itself.
func NewPlanner(store objectstore.Store, catalog *model.Catalog, cache *ArtifactCache, breakers *coreerr.ShardBreakerRegistry, leaseTTL time.Duration) *Planner {
	if breakers == nil {
		breakers = coreerr.NewShardBreakerRegistry(3, time.Minute)
	}
	return &Planner{store: store, catalog: catalog, cache: cache, breakers: breakers, leaseTTL: leaseTTL}
}

// Query is one topK search request (design §4.4).
type Query struct {
	Embedding      []float32
	TopK           int
	NProbe         *int
	Filter         Filter
	ReturnData     bool
	ReturnMetadata bool
}

// Match is one result row.
type Match struct {
	Key      string
	Score    float32
	Data     []float32
	Metadata map[string]any
}

// QueryResult reports matches plus any shards currently quarantined by
// an open circuit breaker, surfaced so a caller can tell a complete
// result from a partial one.
type QueryResult struct {
	Matches     []Match
	Quarantined []string
}

// Query runs a topK approximate search (design §4.4).
func (p *Planner) Query(ctx context.Context, bucket, index string, q Query) (result QueryResult, err error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveVecSeconds(metrics.QueryDuration, bucket, index)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.QueriesTotal.WithLabelValues(bucket, index, outcome).Inc()
	}()

	if q.TopK <= 0 {
		return QueryResult{}, coreerr.Validation("topK must be >= 1, got %d", q.TopK)
	}

	descriptor, err := p.catalog.GetIndex(ctx, bucket, index)
	if err != nil {
		return QueryResult{}, err
	}
	if len(q.Embedding) != descriptor.Dimension {
		return QueryResult{}, coreerr.Validation("query embedding length %d does not match index dimension %d", len(q.Embedding), descriptor.Dimension)
	}

	manifest, err := model.ReadManifest(ctx, p.store, bucket, index)
	if err != nil {
		return QueryResult{}, err
	}
	if len(manifest.Shards) == 0 {
		return QueryResult{}, nil
	}

	queryVec := q.Embedding
	if descriptor.DistanceMetric == model.MetricCosine {
		queryVec = l2Normalize(queryVec)
	}
	nprobeWanted := descriptor.DefaultNProbe
	if q.NProbe != nil {
		nprobeWanted = *q.NProbe
	}

	perShard := make([][]candidate, len(manifest.Shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range manifest.Shards {
		i, ref := i, ref
		g.Go(func() error {
			breaker := p.breakers.For(ref.ShardID)
			if !breaker.Allow() {
				return nil
			}
			shardTimer := metrics.NewTimer()
			cands, err := p.searchShard(gctx, bucket, index, ref, descriptor, queryVec, q.TopK, nprobeWanted)
			shardTimer.ObserveVecSeconds(metrics.ShardSearchDuration, bucket, index)
			if err != nil {
				if coreerr.KindOf(err) == coreerr.KindCorruption {
					wasOpen := breaker.State() == coreerr.BreakerOpen
					breaker.RecordFailure()
					if !wasOpen && breaker.State() == coreerr.BreakerOpen {
						metrics.ShardsQuarantinedTotal.WithLabelValues(bucket, index, ref.ShardID).Inc()
					}
					return nil
				}
				return err
			}
			breaker.RecordSuccess()
			perShard[i] = cands
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return QueryResult{}, err
	}

	merged := mergeTopK(descriptor.DistanceMetric, q.TopK, perShard)

	shardByID := make(map[string]model.ShardRef, len(manifest.Shards))
	for _, ref := range manifest.Shards {
		shardByID[ref.ShardID] = ref
	}

	matches := make([]Match, 0, len(merged))
	for _, c := range merged {
		metadata, err := p.fetchMetadataRow(ctx, bucket, index, c.ShardID, c.MetadataOffset)
		if err != nil {
			continue // a single corrupt metadata row degrades this result, not the whole query
		}
		if q.Filter != nil && !q.Filter.Matches(metadata) {
			continue
		}
		tombstoned, err := p.isTombstoned(ctx, bucket, index, manifest, c.Key, c.SourceSliceID)
		if err != nil {
			return QueryResult{}, err
		}
		if tombstoned {
			continue
		}

		m := Match{Key: c.Key, Score: c.Score}
		if q.ReturnMetadata {
			m.Metadata = metadata
		}
		if q.ReturnData {
			data, err := p.reconstruct(ctx, bucket, index, shardByID[c.ShardID], c.Ordinal)
			if err == nil {
				m.Data = data
			}
		}
		matches = append(matches, m)
	}

	return QueryResult{Matches: matches, Quarantined: p.breakers.Quarantined()}, nil
}

func (p *Planner) reconstruct(ctx context.Context, bucket, index string, shardRef model.ShardRef, ordinal int64) ([]float32, error) {
	shard, release, err := p.acquireShard(ctx, bucket, index, shardRef)
	if err != nil {
		return nil, err
	}
	defer release()
	return shard.index.Reconstruct(ordinal)
}

func (p *Planner) searchShard(ctx context.Context, bucket, index string, shardRef model.ShardRef, descriptor model.IndexDescriptor, query []float32, topK, nprobeWanted int) ([]candidate, error) {
	shard, release, err := p.acquireShard(ctx, bucket, index, shardRef)
	if err != nil {
		return nil, err
	}
	defer release()

	nprobe := ann.ClampNProbe(nprobeWanted, shard.nlistEff)

	result, err := shard.index.Search(query, topK, nprobe)
	if err != nil {
		return nil, coreerr.Corruption("searching shard %q: %v", shardRef.ShardID, err)
	}

	cands := make([]candidate, 0, len(result.Ordinals))
	for i, ord := range result.Ordinals {
		if ord < 0 || int(ord) >= len(shard.entries) {
			continue
		}
		entry := shard.entries[ord]
		cands = append(cands, candidate{
			Key:            entry.Key,
			Score:          result.Distances[i],
			ShardID:        shardRef.ShardID,
			Ordinal:        ord,
			MetadataOffset: entry.MetadataOffset,
			SourceSliceID:  entry.SourceSliceID,
		})
	}
	return cands, nil
}

func (p *Planner) acquireShard(ctx context.Context, bucket, index string, shardRef model.ShardRef) (*cachedShard, func(), error) {
	cfg, err := readShardConfig(ctx, p.store, bucket, index, shardRef.ShardID)
	if err != nil {
		return nil, nil, err
	}
	return p.cache.Acquire(ctx, bucket, index, shardRef, cfg)
}

func readShardConfig(ctx context.Context, store objectstore.Store, bucket, index, shardID string) (model.ShardConfig, error) {
	data, err := store.Get(ctx, model.ShardConfigKey(bucket, index, shardID), nil)
	if err != nil {
		return model.ShardConfig{}, err
	}
	var cfg model.ShardConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return model.ShardConfig{}, coreerr.Corruption("shard %q config is not valid JSON: %v", shardID, err)
	}
	return cfg, nil
}

// fetchMetadataRow fetches one shard's metadata.jsonl row by byte
// range rather than the whole file (design §4.4 step 1): a metadata
// row's length isn't recorded, so the range runs from its start offset
// to the object's end, which is still far less than a full fetch for
// any result that isn't the file's very first row.
func (p *Planner) fetchMetadataRow(ctx context.Context, bucket, index, shardID string, offset int64) (map[string]any, error) {
	key := model.ShardMetadataKey(bucket, index, shardID)
	meta, err := p.store.Head(ctx, key)
	if err != nil {
		return nil, err
	}
	if offset >= meta.Size {
		return nil, coreerr.Corruption("metadata offset %d beyond object size %d for shard %q", offset, meta.Size, shardID)
	}
	data, err := p.store.Get(ctx, key, &objectstore.ByteRange{Start: offset, End: meta.Size - 1})
	if err != nil {
		return nil, err
	}
	line := data
	for i, b := range data {
		if b == '\n' {
			line = data[:i]
			break
		}
	}
	var row map[string]any
	if err := json.Unmarshal(line, &row); err != nil {
		return nil, coreerr.Corruption("metadata row at offset %d for shard %q is not valid JSON: %v", offset, shardID, err)
	}
	return row, nil
}

// isTombstoned reports whether key was deleted after the slice it was
// ingested from was written (design §4.4: "drop keys present in
// manifest.tombstones with timestamp newer than the key's owning slice
// id timestamp"). If the owning slice's meta sidecar has already been
// reclaimed by retention, the key is treated as tombstoned: by the time
// a slice is old enough to be reclaimed, any tombstone naming its key
// is almost certainly newer, and erring toward hiding a stale key is
// safer than resurrecting a deleted one.
func (p *Planner) isTombstoned(ctx context.Context, bucket, index string, manifest model.Manifest, key, sourceSliceID string) (bool, error) {
	deletedAt, ok := manifest.Tombstones[key]
	if !ok {
		return false, nil
	}
	slice, err := model.ReadSliceMeta(ctx, p.store, bucket, index, sourceSliceID)
	if err != nil {
		if coreerr.KindOf(err) == coreerr.KindNotFound {
			return true, nil
		}
		return false, err
	}
	return deletedAt.After(slice.CreatedAt), nil
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

// GetVectors resolves each requested key to its most recent owning
// shard by scanning the manifest tail-to-head (design §4.4). Missing
// keys are silently omitted, not errored.
func (p *Planner) GetVectors(ctx context.Context, bucket, index string, keys []string, returnData, returnMetadata bool) ([]Match, error) {
	manifest, err := model.ReadManifest(ctx, p.store, bucket, index)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}

	found := make(map[string]Match)
	for i := len(manifest.Shards) - 1; i >= 0 && len(found) < len(wanted); i-- {
		shardRef := manifest.Shards[i]
		shard, release, err := p.acquireShard(ctx, bucket, index, shardRef)
		if err != nil {
			continue
		}
		for ordinal, entry := range shard.entries {
			if _, ok := wanted[entry.Key]; !ok {
				continue
			}
			if _, already := found[entry.Key]; already {
				continue
			}
			tombstoned, err := p.isTombstoned(ctx, bucket, index, manifest, entry.Key, entry.SourceSliceID)
			if err != nil || tombstoned {
				continue
			}
			m := Match{Key: entry.Key}
			if returnMetadata {
				if metadata, err := p.fetchMetadataRow(ctx, bucket, index, shardRef.ShardID, entry.MetadataOffset); err == nil {
					m.Metadata = metadata
				}
			}
			if returnData {
				if data, err := shard.index.Reconstruct(int64(ordinal)); err == nil {
					m.Data = data
				}
			}
			found[entry.Key] = m
		}
		release()
	}

	out := make([]Match, 0, len(found))
	for _, k := range keys {
		if m, ok := found[k]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListVectorsPage is one page of a lexicographic key scan.
type ListVectorsPage struct {
	Keys            []string
	PaginationToken string
}

// paginationToken encodes (shard_index, intra-shard offset), the pair
// design §4.4 names, as opaque JSON.
type paginationToken struct {
	ShardIndex int
	Offset     int
}

// ListVectors walks shards in manifest order, returning keys in
// lexicographic order within each shard's keymap (design §4.4).
// Tombstoned keys are skipped.
func (p *Planner) ListVectors(ctx context.Context, bucket, index string, maxResults int, token string) (ListVectorsPage, error) {
	manifest, err := model.ReadManifest(ctx, p.store, bucket, index)
	if err != nil {
		return ListVectorsPage{}, err
	}

	start := paginationToken{}
	if token != "" {
		start, err = decodePaginationToken(token)
		if err != nil {
			return ListVectorsPage{}, err
		}
	}

	var keys []string
	shardIdx, offset := start.ShardIndex, start.Offset
	for shardIdx < len(manifest.Shards) {
		shardRef := manifest.Shards[shardIdx]
		shard, release, err := p.acquireShard(ctx, bucket, index, shardRef)
		if err != nil {
			shardIdx++
			offset = 0
			continue
		}

		sortedKeys := make([]string, len(shard.entries))
		for i, e := range shard.entries {
			sortedKeys[i] = e.Key
		}
		sort.Strings(sortedKeys)

		for offset < len(sortedKeys) && len(keys) < maxResults {
			key := sortedKeys[offset]
			offset++
			if _, tombstoned := manifest.Tombstones[key]; tombstoned {
				continue
			}
			keys = append(keys, key)
		}
		release()

		if len(keys) >= maxResults {
			if offset >= len(sortedKeys) {
				shardIdx++
				offset = 0
			}
			nextToken := ""
			if shardIdx < len(manifest.Shards) {
				nextToken = encodePaginationToken(paginationToken{ShardIndex: shardIdx, Offset: offset})
			}
			return ListVectorsPage{Keys: keys, PaginationToken: nextToken}, nil
		}

		shardIdx++
		offset = 0
	}

	return ListVectorsPage{Keys: keys}, nil
}

func encodePaginationToken(t paginationToken) string {
	data, _ := json.Marshal(t)
	return string(data)
}

func decodePaginationToken(s string) (paginationToken, error) {
	var t paginationToken
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return paginationToken{}, coreerr.Validation("invalid pagination token: %v", err)
	}
	return t, nil
}

// DeleteVectors appends tombstone entries under the index's build
// lease (design §4.4, §5). It does not rewrite shards; physical
// removal is a future compaction, out of scope.
func (p *Planner) DeleteVectors(ctx context.Context, bucket, index string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	lease, err := objectstore.AcquireLease(ctx, p.store, model.LeaseKey(bucket, index), p.leaseTTL)
	if err != nil {
		return err
	}
	defer lease.Release(ctx)

	version, err := model.ReadManifestPointer(ctx, p.store, bucket, index)
	if err != nil {
		return err
	}
	manifest, err := model.ReadManifestVersion(ctx, p.store, bucket, index, version)
	if err != nil {
		return err
	}

	next := manifest.Clone()
	next.Version = manifest.Version + 1
	now := time.Now().UTC()
	for _, k := range keys {
		next.Tombstones[k] = now
	}

	if err := model.PublishManifest(ctx, p.store, bucket, index, next, version); err != nil {
		return err
	}
	metrics.DeletedKeysTotal.WithLabelValues(bucket, index).Add(float64(len(keys)))
	return nil
}
