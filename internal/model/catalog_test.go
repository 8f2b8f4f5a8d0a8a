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

func newTestCatalog() *Catalog {
	return NewCatalog(objectstore.NewMemStore())
}

func newTestCatalogWithStore() (*Catalog, objectstore.Store) {
	store := objectstore.NewMemStore()
	return NewCatalog(store), store
}

func TestCatalog_CreateAndGetBucket(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()

	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: "my-bucket", CreatedAt: time.Now()}))

	b, err := c.GetBucket(ctx, "my-bucket")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", b.Name)
}

func TestCatalog_CreateBucketConflict(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: "b3", CreatedAt: time.Now()}))

	err := c.CreateBucket(ctx, VectorBucket{Name: "b3", CreatedAt: time.Now()})
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.KindOf(err))
}

func TestCatalog_DeleteBucketConflictsWhenIndexesRemain(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	d := validDescriptor()
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: d.Bucket, CreatedAt: time.Now()}))
	require.NoError(t, c.CreateIndex(ctx, d))

	err := c.DeleteBucket(ctx, d.Bucket)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.KindOf(err))

	_, getErr := c.GetBucket(ctx, d.Bucket)
	require.NoError(t, getErr)
}

func TestCatalog_DeleteBucketSucceedsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: "b3", CreatedAt: time.Now()}))

	require.NoError(t, c.DeleteBucket(ctx, "b3"))
	_, err := c.GetBucket(ctx, "b3")
	assert.Equal(t, coreerr.KindNotFound, coreerr.KindOf(err))
}

func TestCatalog_GetBucketNotFound(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	_, err := c.GetBucket(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, coreerr.KindNotFound, coreerr.KindOf(err))
}

func TestCatalog_ListBucketsReturnsAllCreated(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: "b1", CreatedAt: time.Now()}))
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: "b2", CreatedAt: time.Now()}))

	buckets, err := c.ListBuckets(ctx)
	require.NoError(t, err)
	names := []string{buckets[0].Name, buckets[1].Name}
	assert.ElementsMatch(t, []string{"b1", "b2"}, names)
}

func TestCatalog_CreateIndexAlsoSeedsEmptyManifest(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCatalogWithStore()
	d := validDescriptor()
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: d.Bucket, CreatedAt: time.Now()}))
	require.NoError(t, c.CreateIndex(ctx, d))

	got, err := c.GetIndex(ctx, d.Bucket, d.IndexName)
	require.NoError(t, err)
	assert.Equal(t, d.Dimension, got.Dimension)

	manifest, err := ReadManifest(ctx, store, d.Bucket, d.IndexName)
	require.NoError(t, err)
	assert.Equal(t, 0, manifest.Version)
	assert.Empty(t, manifest.Shards)
}

func TestCatalog_CreateIndexConflict(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	d := validDescriptor()
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: d.Bucket, CreatedAt: time.Now()}))
	require.NoError(t, c.CreateIndex(ctx, d))

	err := c.CreateIndex(ctx, d)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindConflict, coreerr.KindOf(err))
}

func TestCatalog_CreateIndexRejectsInvalidDescriptor(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	d := validDescriptor()
	d.Dimension = 0

	err := c.CreateIndex(ctx, d)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindValidation, coreerr.KindOf(err))
}

func TestCatalog_ListIndexesScopedToBucket(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog()
	d1 := validDescriptor()
	d2 := validDescriptor()
	d2.IndexName = "second-index"

	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: d1.Bucket, CreatedAt: time.Now()}))
	require.NoError(t, c.CreateIndex(ctx, d1))
	require.NoError(t, c.CreateIndex(ctx, d2))

	indexes, err := c.ListIndexes(ctx, d1.Bucket)
	require.NoError(t, err)
	assert.Len(t, indexes, 2)
}

func TestCatalog_DeleteIndexRemovesDescriptorAndPointer(t *testing.T) {
	ctx := context.Background()
	c, store := newTestCatalogWithStore()
	d := validDescriptor()
	require.NoError(t, c.CreateBucket(ctx, VectorBucket{Name: d.Bucket, CreatedAt: time.Now()}))
	require.NoError(t, c.CreateIndex(ctx, d))

	require.NoError(t, c.DeleteIndex(ctx, d.Bucket, d.IndexName))

	_, err := c.GetIndex(ctx, d.Bucket, d.IndexName)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindNotFound, coreerr.KindOf(err))

	_, err = ReadManifestPointer(ctx, store, d.Bucket, d.IndexName)
	require.Error(t, err)
	assert.Equal(t, coreerr.KindNotFound, coreerr.KindOf(err))
}
