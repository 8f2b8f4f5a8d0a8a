package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// manifestPointer is the body of manifest.json: it names the current
// immutable manifest version rather than embedding the manifest
// itself, so the pointer flip (design §5) is a single small write.
type manifestPointer struct {
	Version int `json:"version"`
}

// ReadManifestPointer resolves manifest.json to the version number it
// currently names.
func ReadManifestPointer(ctx context.Context, store objectstore.Store, bucket, index string) (int, error) {
	data, err := store.Get(ctx, ManifestPointerKey(bucket, index), nil)
	if err != nil {
		if coreerr.KindOf(err) == coreerr.KindNotFound {
			return 0, coreerr.NotFound("index %q has no manifest pointer", index)
		}
		return 0, err
	}
	var p manifestPointer
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, coreerr.Corruption("manifest pointer for index %q is not valid JSON: %v", index, err)
	}
	return p.Version, nil
}

// ReadManifest resolves manifest.json then fetches the versioned
// manifest it names.
func ReadManifest(ctx context.Context, store objectstore.Store, bucket, index string) (Manifest, error) {
	version, err := ReadManifestPointer(ctx, store, bucket, index)
	if err != nil {
		return Manifest{}, err
	}
	return ReadManifestVersion(ctx, store, bucket, index, version)
}

// ReadManifestVersion fetches one immutable manifest.vN.json directly,
// used by a query that wants a specific snapshot and by the indexer
// when building the next version from a known base.
func ReadManifestVersion(ctx context.Context, store objectstore.Store, bucket, index string, version int) (Manifest, error) {
	data, err := store.Get(ctx, ManifestVersionKey(bucket, index, version), nil)
	if err != nil {
		if coreerr.KindOf(err) == coreerr.KindNotFound {
			return Manifest{}, coreerr.NotFound("manifest version %d not found for index %q", version, index)
		}
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, coreerr.Corruption("manifest v%d for index %q is not valid JSON: %v", version, index, err)
	}
	return m, nil
}

// PublishManifest performs the two-phase write from design §5: it
// writes the new manifest as an immutable, version-named
// manifest.v{N+1}.json via conditional-create, then flips the
// manifest.json pointer to name it. The flip itself is a plain
// overwrite rather than a second conditional-create, because the
// caller is required to be the index's current build lease holder —
// invariant I5 guarantees only one writer can reach this call for a
// given index at a time, so the safety the two-phase design wants
// ("requiring the prior pointer to name vN") is enforced by passing
// expectedPriorVersion and checking it before either write, not by a
// second storage-level CAS.
func PublishManifest(ctx context.Context, store objectstore.Store, bucket, index string, next Manifest, expectedPriorVersion int) error {
	if next.Version != expectedPriorVersion+1 {
		return coreerr.Fatal("manifest version must be expectedPriorVersion+1: got %d, expected %d", next.Version, expectedPriorVersion+1)
	}

	currentVersion, err := ReadManifestPointer(ctx, store, bucket, index)
	if err != nil {
		return err
	}
	if currentVersion != expectedPriorVersion {
		return coreerr.Conflict("manifest for index %q advanced to v%d while building v%d; caller must re-read and retry",
			index, currentVersion, next.Version)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return coreerr.Fatal("marshal manifest v%d: %v", next.Version, err)
	}
	if err := store.Put(ctx, ManifestVersionKey(bucket, index, next.Version), data, objectstore.PutOptions{IfNoneMatch: true}); err != nil {
		if coreerr.KindOf(err) == coreerr.KindConflict {
			return coreerr.Fatal("manifest v%d for index %q already exists; an earlier crash may have left a partial publish", next.Version, index)
		}
		return err
	}

	pointer, err := json.Marshal(manifestPointer{Version: next.Version})
	if err != nil {
		return coreerr.Fatal("marshal manifest pointer: %v", err)
	}
	return store.Put(ctx, ManifestPointerKey(bucket, index), pointer, objectstore.PutOptions{})
}

// ShardLineage associates a published shard with the ordered list of
// slice_ids it was built from, persisted as a sidecar next to the
// shard's keymap so the indexer's high-watermark scan and its
// consumed-slice cleanup can both reach it without re-reading every
// slice.
type ShardLineage struct {
	ShardID      string   `json:"shard_id"`
	SourceSlices []string `json:"source_slices"`
}

func shardLineageKey(bucket, index, shardID string) string {
	return fmt.Sprintf("%slineage.json", ShardPrefix(bucket, index, shardID))
}

// WriteShardLineage persists a shard's source_slices list.
func WriteShardLineage(ctx context.Context, store objectstore.Store, bucket, index string, lineage ShardLineage) error {
	data, err := json.Marshal(lineage)
	if err != nil {
		return coreerr.Fatal("marshal shard lineage: %v", err)
	}
	return store.Put(ctx, shardLineageKey(bucket, index, lineage.ShardID), data, objectstore.PutOptions{})
}

// ReadShardLineage fetches a shard's source_slices list.
func ReadShardLineage(ctx context.Context, store objectstore.Store, bucket, index, shardID string) (ShardLineage, error) {
	data, err := store.Get(ctx, shardLineageKey(bucket, index, shardID), nil)
	if err != nil {
		if coreerr.KindOf(err) == coreerr.KindNotFound {
			return ShardLineage{}, coreerr.NotFound("lineage for shard %q not found", shardID)
		}
		return ShardLineage{}, err
	}
	var l ShardLineage
	if err := json.Unmarshal(data, &l); err != nil {
		return ShardLineage{}, coreerr.Corruption("lineage for shard %q is not valid JSON: %v", shardID, err)
	}
	return l, nil
}
