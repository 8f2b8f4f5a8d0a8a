package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/vectorcore/internal/ann"
	"github.com/dreamware/vectorcore/internal/ingest"
	"github.com/dreamware/vectorcore/internal/metrics"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// Config is the subset of config.Config the build cycle consumes,
// passed explicitly so this package does not import internal/config.
type Config struct {
	SMax              int
	BuildMinThreshold int
	BuildIdleTimeout  time.Duration
	LeaseTTL          time.Duration
	SliceRetention    time.Duration
	ShardRetention    time.Duration
}

// Cycle runs one logical IX worker per (bucket, index) (design §4.3).
type Cycle struct {
	store   objectstore.Store
	catalog *model.Catalog
	builder ann.Builder
	cfg     Config
	log     *slog.Logger
}

// NewCycle builds a Cycle. builder selects the ANN backend every shard
// in this cycle is trained with.
func NewCycle(store objectstore.Store, catalog *model.Catalog, builder ann.Builder, cfg Config, log *slog.Logger) *Cycle {
	if log == nil {
		log = slog.Default()
	}
	return &Cycle{store: store, catalog: catalog, builder: builder, cfg: cfg, log: log}
}

// RunResult reports what one build cycle actually did, for logging.
type RunResult struct {
	Skipped         bool
	Reason          string
	ShardsBuilt     int
	ShardsFailed    int
	ManifestAfter   int
	SlicesReclaimed int
	ShardsReclaimed int
}

// pendingSlice is one un-consumed slice read during a build cycle.
type pendingSlice struct {
	sliceID string
	records []model.VectorRecord
}

// Run executes one full build cycle for (bucket, index): acquire the
// lease, find un-consumed slices, shard and train them, and publish the
// resulting manifest version (design §4.3 steps 1-6).
func (c *Cycle) Run(ctx context.Context, bucket, index string) (result RunResult, err error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveVecSeconds(metrics.BuildCycleDuration, bucket, index)
		if err != nil {
			metrics.BuildCyclesFailedTotal.WithLabelValues(bucket, index).Inc()
		}
	}()

	lease, err := objectstore.AcquireLease(ctx, c.store, model.LeaseKey(bucket, index), c.cfg.LeaseTTL)
	if err != nil {
		return RunResult{}, err
	}
	lease.StartAutoRenew(ctx, func(err error) {
		c.log.Warn("lease renewal failed", slog.String("bucket", bucket), slog.String("index", index), slog.Any("error", err))
	})
	defer func() {
		if err := lease.Release(ctx); err != nil {
			c.log.Warn("lease release failed", slog.String("bucket", bucket), slog.String("index", index), slog.Any("error", err))
		}
	}()

	// Every cycle begins, lease-holder-only, with the reclaim pass: orphan
	// shard artifacts from a crashed build and raw slices already consumed
	// by a published shard past their retention window (design §4.3 step 7
	// and the crash-recovery scenario).
	cleanupCfg := CleanupConfig{SliceRetention: c.cfg.SliceRetention, ShardRetention: c.cfg.ShardRetention}
	reclaimedShards, err := ReclaimOrphanShards(ctx, c.store, bucket, index, cleanupCfg, c.log)
	if err != nil {
		return RunResult{}, err
	}
	reclaimedSlices, err := ReclaimConsumedSlices(ctx, c.store, bucket, index, cleanupCfg, c.log)
	if err != nil {
		return RunResult{ShardsReclaimed: reclaimedShards}, err
	}

	descriptor, err := c.catalog.GetIndex(ctx, bucket, index)
	if err != nil {
		return RunResult{SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, err
	}

	manifest, err := model.ReadManifest(ctx, c.store, bucket, index)
	if err != nil {
		return RunResult{SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, err
	}

	highWatermark, err := highestConsumedSliceID(ctx, c.store, bucket, index, manifest)
	if err != nil {
		return RunResult{SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, err
	}

	pending, oldestPendingAt, err := c.listPendingSlices(ctx, bucket, index, highWatermark)
	if err != nil {
		return RunResult{SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, err
	}
	if len(pending) == 0 {
		return RunResult{Skipped: true, Reason: "no un-consumed slices", SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, nil
	}

	total := 0
	for _, s := range pending {
		total += len(s.records)
	}
	if total < c.cfg.BuildMinThreshold && time.Since(oldestPendingAt) < c.cfg.BuildIdleTimeout {
		return RunResult{Skipped: true, Reason: "below build threshold and idle timeout not reached", SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, nil
	}

	groups := partitionIntoShardGroups(pending, c.cfg.SMax)

	limit := min(runtime.NumCPU(), len(groups))
	if limit < 1 {
		limit = 1
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	refs := make([]model.ShardRef, len(groups))
	failed := make([]bool, len(groups))
	for i, g := range groups {
		i, g := i, g
		group.Go(func() error {
			shardID := newShardID(manifest.Version+1, i, g)
			ref, err := BuildShard(gctx, c.builder, c.store, ShardBuildInput{
				ShardID:       shardID,
				Bucket:        bucket,
				Index:         index,
				Dimension:     descriptor.Dimension,
				Metric:        descriptor.DistanceMetric,
				IVFNList:      descriptor.IVFNList,
				PQM:           descriptor.PQM,
				PQNBits:       descriptor.PQNBits,
				Keys:          g.keys,
				Embeddings:    g.embeddings,
				SourceSliceID: g.sourceSliceIDs,
				Metadata:      g.metadata,
			})
			if err != nil {
				c.log.Warn("shard build failed, will retry next cycle",
					slog.String("bucket", bucket), slog.String("index", index),
					slog.String("shard_id", shardID), slog.Any("error", err))
				failed[i] = true
				return nil // publish-subset default: a failed shard does not abort the cycle
			}
			refs[i] = ref
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return RunResult{SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, err
	}

	var built []model.ShardRef
	failedCount := 0
	for i, ref := range refs {
		if failed[i] {
			failedCount++
			continue
		}
		built = append(built, ref)
	}
	if len(built) == 0 {
		// Publish-subset with an empty subset: nothing new to publish this
		// cycle. The failed shard-groups' source slices remain un-consumed
		// and are retried on the next cycle (design §4.3 failure semantics).
		return RunResult{ShardsFailed: failedCount, SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, nil
	}

	next := manifest.Clone()
	next.Version = manifest.Version + 1
	next.Shards = append(next.Shards, built...)
	sort.Slice(next.Shards, func(i, j int) bool { return next.Shards[i].ShardID < next.Shards[j].ShardID })

	if err := model.PublishManifest(ctx, c.store, bucket, index, next, manifest.Version); err != nil {
		return RunResult{SlicesReclaimed: reclaimedSlices, ShardsReclaimed: reclaimedShards}, err
	}
	metrics.ShardsPublishedTotal.WithLabelValues(bucket, index).Add(float64(len(built)))

	return RunResult{
		ShardsBuilt:     len(built),
		ShardsFailed:    failedCount,
		ManifestAfter:   next.Version,
		SlicesReclaimed: reclaimedSlices,
		ShardsReclaimed: reclaimedShards,
	}, nil
}

// highestConsumedSliceID scans the lineage of every shard already in
// manifest and returns the greatest slice_id among them, or "" if the
// manifest has no shards yet. Slice ids are fixed-width zero-padded
// counters followed by a random suffix, so lexicographic string
// comparison agrees with numeric order on the counter.
func highestConsumedSliceID(ctx context.Context, store objectstore.Store, bucket, index string, manifest model.Manifest) (string, error) {
	highest := ""
	for _, ref := range manifest.Shards {
		lineage, err := model.ReadShardLineage(ctx, store, bucket, index, ref.ShardID)
		if err != nil {
			return "", err
		}
		for _, sliceID := range lineage.SourceSlices {
			if sliceID > highest {
				highest = sliceID
			}
		}
	}
	return highest, nil
}

// listPendingSlices lists vectors/{bucket}/{index}/raw/, reads every
// slice whose slice_id exceeds highWatermark, and returns them in
// ascending slice_id order along with the oldest pending slice's
// creation time (design §4.3 steps 2 and 4).
func (c *Cycle) listPendingSlices(ctx context.Context, bucket, index, highWatermark string) ([]pendingSlice, time.Time, error) {
	prefix := model.RawPrefix(bucket, index)
	var pending []pendingSlice
	var oldest time.Time

	token := ""
	for {
		page, err := c.store.List(ctx, prefix, token)
		if err != nil {
			return nil, time.Time{}, err
		}
		for _, obj := range page.Objects {
			if !strings.HasSuffix(obj.Key, ".jsonl") {
				continue // skip per-slice .meta.json sidecars
			}
			sliceID := sliceIDFromKey(obj.Key, prefix)
			if sliceID == "" || sliceID <= highWatermark {
				continue
			}
			data, err := c.store.Get(ctx, obj.Key, nil)
			if err != nil {
				return nil, time.Time{}, err
			}
			records, err := ingest.DecodeSliceJSONL(data)
			if err != nil {
				return nil, time.Time{}, err
			}
			pending = append(pending, pendingSlice{sliceID: sliceID, records: records})

			modified := time.Unix(obj.LastModified, 0)
			if oldest.IsZero() || modified.Before(oldest) {
				oldest = modified
			}
		}
		if page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].sliceID < pending[j].sliceID })
	return pending, oldest, nil
}

func sliceIDFromKey(key, prefix string) string {
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(key, prefix)
	rest = strings.TrimSuffix(rest, ".jsonl")
	return rest
}

// shardGroup is one shard-group's worth of pending records, flattened
// across however many slices it spans (design §4.3 step 4).
type shardGroup struct {
	keys           []string
	embeddings     [][]float32
	sourceSliceIDs []string
	metadata       []map[string]any
}

// partitionIntoShardGroups flattens pending slices (already in
// ascending slice_id order) and splits them into groups of up to sMax
// vectors; the last group may be smaller.
func partitionIntoShardGroups(pending []pendingSlice, sMax int) []shardGroup {
	var groups []shardGroup
	var current shardGroup

	flush := func() {
		if len(current.keys) > 0 {
			groups = append(groups, current)
			current = shardGroup{}
		}
	}

	for _, slice := range pending {
		for _, rec := range slice.records {
			if len(current.keys) >= sMax {
				flush()
			}
			current.keys = append(current.keys, rec.Key)
			current.embeddings = append(current.embeddings, rec.Embedding)
			current.sourceSliceIDs = append(current.sourceSliceIDs, slice.sliceID)
			current.metadata = append(current.metadata, rec.Metadata)
		}
	}
	flush()

	return groups
}

// newShardID builds an opaque, collision-resistant shard identifier: a
// zero-padded manifest version, the zero-padded group index, and a short
// hash of the group index, first key, last key, and vector count
// (design §3 Shard: "zero-padded index
// + short hash").
func newShardID(nextManifestVersion, groupIndex int, g shardGroup) string {
	first, last := "", ""
	if len(g.keys) > 0 {
		first, last = g.keys[0], g.keys[len(g.keys)-1]
	}
	h := fnvSum(fmt.Sprintf("%d|%s|%s|%d", groupIndex, first, last, len(g.keys)))
	return fmt.Sprintf("%010d-%03d-%08x", nextManifestVersion, groupIndex, h)
}
