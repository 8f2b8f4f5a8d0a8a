package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

func seedIndex(t *testing.T, ctx context.Context, store objectstore.Store) IndexDescriptor {
	t.Helper()
	c := NewCatalog(store)
	d := validDescriptor()
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: d.Bucket, CreatedAt: time.Now()}))
	require.NoError(t, c.CreateIndex(ctx, d))
	return d
}

func TestPublishManifest_AdvancesPointer(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	d := seedIndex(t, ctx, store)

	next := Manifest{
		IndexDescriptor: d,
		Shards:          []ShardRef{{ShardID: "shard-001", VectorCount: 100, Checksum: "abc"}},
		Tombstones:      map[string]time.Time{},
		Version:         1,
	}
	require.NoError(t, PublishManifest(ctx, store, d.Bucket, d.IndexName, next, 0))

	got, err := ReadManifest(ctx, store, d.Bucket, d.IndexName)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	require.Len(t, got.Shards, 1)
	assert.Equal(t, "shard-001", got.Shards[0].ShardID)
}

func TestPublishManifest_RejectsStaleBase(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	d := seedIndex(t, ctx, store)

	first := Manifest{IndexDescriptor: d, Tombstones: map[string]time.Time{}, Version: 1,
		Shards: []ShardRef{{ShardID: "shard-001", VectorCount: 10, Checksum: "a"}}}
	require.NoError(t, PublishManifest(ctx, store, d.Bucket, d.IndexName, first, 0))

	// A second builder that started from v0 tries to publish v1 again.
	stale := Manifest{IndexDescriptor: d, Tombstones: map[string]time.Time{}, Version: 1,
		Shards: []ShardRef{{ShardID: "shard-002", VectorCount: 10, Checksum: "b"}}}
	err := PublishManifest(ctx, store, d.Bucket, d.IndexName, stale, 0)
	require.Error(t, err)
}

func TestPublishManifest_RejectsNonSequentialVersion(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	d := seedIndex(t, ctx, store)

	bad := Manifest{IndexDescriptor: d, Tombstones: map[string]time.Time{}, Version: 5}
	err := PublishManifest(ctx, store, d.Bucket, d.IndexName, bad, 0)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindFatal, coreerr.KindOf(err))
}

func TestReadManifest_NotFoundForUnknownIndex(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	_, err := ReadManifest(ctx, store, "no-such-bucket", "no-such-index")
	require.Error(t, err)
	assert.Equal(t, coreerr.KindNotFound, coreerr.KindOf(err))
}

func TestShardLineage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemStore()
	d := seedIndex(t, ctx, store)

	lineage := ShardLineage{ShardID: "shard-001", SourceSlices: []string{"00000000000000000001-aaaa", "00000000000000000002-bbbb"}}
	require.NoError(t, WriteShardLineage(ctx, store, d.Bucket, d.IndexName, lineage))

	got, err := ReadShardLineage(ctx, store, d.Bucket, d.IndexName, "shard-001")
	require.NoError(t, err)
	assert.Equal(t, lineage.SourceSlices, got.SourceSlices)
}
