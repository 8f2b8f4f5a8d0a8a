package indexer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/metrics"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// CleanupConfig bounds the two retention windows the orphan reclaim
// pass enforces (design §4.3 step 7 and "Crash recovery").
type CleanupConfig struct {
	SliceRetention time.Duration
	ShardRetention time.Duration
}

// ReclaimConsumedSlices deletes raw slice objects that were consumed by
// a published shard (per the shard's lineage) more than
// cfg.SliceRetention ago (design §4.3 step 7). Must be called by the
// lease holder, after a successful PublishManifest.
func ReclaimConsumedSlices(ctx context.Context, store objectstore.Store, bucket, index string, cfg CleanupConfig, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}

	manifest, err := model.ReadManifest(ctx, store, bucket, index)
	if err != nil {
		return 0, err
	}

	consumed := make(map[string]struct{})
	for _, ref := range manifest.Shards {
		lineage, err := model.ReadShardLineage(ctx, store, bucket, index, ref.ShardID)
		if err != nil {
			return 0, err
		}
		for _, sliceID := range lineage.SourceSlices {
			consumed[sliceID] = struct{}{}
		}
	}

	prefix := model.RawPrefix(bucket, index)
	deleted := 0
	token := ""
	for {
		page, err := store.List(ctx, prefix, token)
		if err != nil {
			return deleted, err
		}
		for _, obj := range page.Objects {
			if !strings.HasSuffix(obj.Key, ".jsonl") {
				continue // the .meta.json sidecar is deleted alongside its slice below
			}
			sliceID := sliceIDFromKey(obj.Key, prefix)
			if _, ok := consumed[sliceID]; !ok {
				continue
			}
			if time.Since(time.Unix(obj.LastModified, 0)) < cfg.SliceRetention {
				continue
			}
			if err := store.Delete(ctx, obj.Key); err != nil {
				return deleted, err
			}
			if err := store.Delete(ctx, model.SliceMetaKey(bucket, index, sliceID)); err != nil {
				return deleted, err
			}
			deleted++
		}
		if page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}

	if deleted > 0 {
		log.Info("reclaimed consumed slices", slog.String("bucket", bucket), slog.String("index", index), slog.Int("count", deleted))
		metrics.ReclaimedObjectsTotal.WithLabelValues(bucket, index, "slice").Add(float64(deleted))
	}
	return deleted, nil
}

// ReclaimOrphanShards is the startup scan from design §4.3 "Crash
// recovery": it deletes shard prefixes whose ready marker is older than
// cfg.ShardRetention and whose shard_id is absent from the current
// manifest — the signature of a build that wrote shard artifacts but
// crashed before the manifest flip. Must be called only by the lease
// holder, since it both reads and potentially deletes shard artifacts
// concurrently with a build cycle's own writes.
func ReclaimOrphanShards(ctx context.Context, store objectstore.Store, bucket, index string, cfg CleanupConfig, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}

	manifest, err := model.ReadManifest(ctx, store, bucket, index)
	if err != nil {
		return 0, err
	}
	inManifest := make(map[string]struct{}, len(manifest.Shards))
	for _, ref := range manifest.Shards {
		inManifest[ref.ShardID] = struct{}{}
	}

	prefix := model.ShardsPrefix(bucket, index)
	readyByShard := make(map[string]objectstore.ObjectMeta)
	token := ""
	for {
		page, err := store.List(ctx, prefix, token)
		if err != nil {
			return 0, err
		}
		for _, obj := range page.Objects {
			if !strings.HasSuffix(obj.Key, "/ready") {
				continue
			}
			shardID := shardIDFromReadyKey(obj.Key, prefix)
			if shardID != "" {
				readyByShard[shardID] = obj
			}
		}
		if page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}

	deleted := 0
	for shardID, readyObj := range readyByShard {
		if _, ok := inManifest[shardID]; ok {
			continue
		}
		if time.Since(time.Unix(readyObj.LastModified, 0)) < cfg.ShardRetention {
			continue
		}
		if err := deleteShardPrefix(ctx, store, bucket, index, shardID); err != nil {
			return deleted, err
		}
		deleted++
	}

	if deleted > 0 {
		log.Info("reclaimed orphan shards", slog.String("bucket", bucket), slog.String("index", index), slog.Int("count", deleted))
		metrics.ReclaimedObjectsTotal.WithLabelValues(bucket, index, "shard").Add(float64(deleted))
	}
	return deleted, nil
}

func deleteShardPrefix(ctx context.Context, store objectstore.Store, bucket, index, shardID string) error {
	prefix := model.ShardPrefix(bucket, index, shardID)
	token := ""
	for {
		page, err := store.List(ctx, prefix, token)
		if err != nil {
			return err
		}
		for _, obj := range page.Objects {
			if err := store.Delete(ctx, obj.Key); err != nil {
				return coreerr.Wrap(coreerr.KindOf(err), err, "deleting orphan shard artifact %q", obj.Key)
			}
		}
		if page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}
	return nil
}

func shardIDFromReadyKey(key, prefix string) string {
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(key, prefix)
	return strings.TrimSuffix(rest, "/ready")
}
