package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// Catalog is the tiny shared abstraction owned by the ingestion
// pipeline, indexer, and query planner: it persists bucket descriptors,
// index descriptors, and manifest pointers as well-known named objects
// in the object store (design §2, layout in §6).
type Catalog struct {
	store objectstore.Store
}

// NewCatalog wraps store with the well-known key layout under
// "vectors/".
func NewCatalog(store objectstore.Store) *Catalog {
	return &Catalog{store: store}
}

// CreateBucket persists a new VectorBucket, failing with Conflict if
// one already exists at this name.
func (c *Catalog) CreateBucket(ctx context.Context, b VectorBucket) error {
	if err := ValidateName("bucket", b.Name); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return coreerr.Fatal("marshal bucket: %v", err)
	}
	if err := c.store.Put(ctx, BucketKey(b.Name), data, objectstore.PutOptions{IfNoneMatch: true}); err != nil {
		if coreerr.KindOf(err) == coreerr.KindConflict {
			return coreerr.Conflict("bucket %q already exists", b.Name)
		}
		return err
	}
	return nil
}

// GetBucket reads a bucket descriptor, or NotFound if it does not exist.
func (c *Catalog) GetBucket(ctx context.Context, name string) (VectorBucket, error) {
	data, err := c.store.Get(ctx, BucketKey(name), nil)
	if err != nil {
		if coreerr.KindOf(err) == coreerr.KindNotFound {
			return VectorBucket{}, coreerr.NotFound("bucket %q not found", name)
		}
		return VectorBucket{}, err
	}
	var b VectorBucket
	if err := json.Unmarshal(data, &b); err != nil {
		return VectorBucket{}, coreerr.Corruption("bucket %q descriptor is not valid JSON: %v", name, err)
	}
	return b, nil
}

// ListBuckets lists every VectorBucket, paging through the object
// store's "vectors/" prefix.
func (c *Catalog) ListBuckets(ctx context.Context) ([]VectorBucket, error) {
	var buckets []VectorBucket
	token := ""
	for {
		page, err := c.store.List(ctx, "vectors/", token)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			if !isBucketDescriptorKey(obj.Key) {
				continue
			}
			data, err := c.store.Get(ctx, obj.Key, nil)
			if err != nil {
				return nil, err
			}
			var b VectorBucket
			if err := json.Unmarshal(data, &b); err != nil {
				return nil, coreerr.Corruption("bucket descriptor %q is not valid JSON: %v", obj.Key, err)
			}
			buckets = append(buckets, b)
		}
		if page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}
	return buckets, nil
}

func isBucketDescriptorKey(key string) bool {
	const suffix = "/.bucket.json"
	if len(key) <= len(suffix) {
		return false
	}
	return key[len(key)-len(suffix):] == suffix
}

// DeleteBucket removes a bucket descriptor, failing with Conflict if
// any index still exists in it (design §3 VectorBucket lifecycle,
// design §7 "deleting a non-empty bucket returns Conflict").
func (c *Catalog) DeleteBucket(ctx context.Context, name string) error {
	indexes, err := c.ListIndexes(ctx, name)
	if err != nil {
		return err
	}
	if len(indexes) > 0 {
		return coreerr.Conflict("bucket %q still has %d index(es); delete them first", name, len(indexes))
	}
	return c.store.Delete(ctx, BucketKey(name))
}

// CreateIndex persists a new IndexDescriptor, failing with Conflict if
// one already exists for this (bucket, index_name).
func (c *Catalog) CreateIndex(ctx context.Context, d IndexDescriptor) error {
	if err := ValidateDescriptor(d); err != nil {
		return err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return coreerr.Fatal("marshal index descriptor: %v", err)
	}
	key := IndexDescriptorKey(d.Bucket, d.IndexName)
	if err := c.store.Put(ctx, key, data, objectstore.PutOptions{IfNoneMatch: true}); err != nil {
		if coreerr.KindOf(err) == coreerr.KindConflict {
			return coreerr.Conflict("index %q already exists in bucket %q", d.IndexName, d.Bucket)
		}
		return err
	}

	empty := Manifest{IndexDescriptor: d, Tombstones: map[string]time.Time{}, Version: 0}
	emptyData, err := json.Marshal(empty)
	if err != nil {
		return coreerr.Fatal("marshal empty manifest: %v", err)
	}
	if err := c.store.Put(ctx, ManifestVersionKey(d.Bucket, d.IndexName, 0), emptyData, objectstore.PutOptions{IfNoneMatch: true}); err != nil {
		return err
	}
	pointer, err := json.Marshal(manifestPointer{Version: 0})
	if err != nil {
		return coreerr.Fatal("marshal manifest pointer: %v", err)
	}
	return c.store.Put(ctx, ManifestPointerKey(d.Bucket, d.IndexName), pointer, objectstore.PutOptions{IfNoneMatch: true})
}

// GetIndex reads an IndexDescriptor, or NotFound if absent.
func (c *Catalog) GetIndex(ctx context.Context, bucket, index string) (IndexDescriptor, error) {
	data, err := c.store.Get(ctx, IndexDescriptorKey(bucket, index), nil)
	if err != nil {
		if coreerr.KindOf(err) == coreerr.KindNotFound {
			return IndexDescriptor{}, coreerr.NotFound("index %q not found in bucket %q", index, bucket)
		}
		return IndexDescriptor{}, err
	}
	var d IndexDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return IndexDescriptor{}, coreerr.Corruption("index descriptor %q is not valid JSON: %v", index, err)
	}
	return d, nil
}

// ListIndexes lists every index descriptor in bucket.
func (c *Catalog) ListIndexes(ctx context.Context, bucket string) ([]IndexDescriptor, error) {
	var indexes []IndexDescriptor
	prefix := fmt.Sprintf("vectors/%s/", bucket)
	token := ""
	for {
		page, err := c.store.List(ctx, prefix, token)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Objects {
			const suffix = "/.index.json"
			if len(obj.Key) <= len(suffix) || obj.Key[len(obj.Key)-len(suffix):] != suffix {
				continue
			}
			data, err := c.store.Get(ctx, obj.Key, nil)
			if err != nil {
				return nil, err
			}
			var d IndexDescriptor
			if err := json.Unmarshal(data, &d); err != nil {
				return nil, coreerr.Corruption("index descriptor %q is not valid JSON: %v", obj.Key, err)
			}
			indexes = append(indexes, d)
		}
		if page.ContinuationToken == "" {
			break
		}
		token = page.ContinuationToken
	}
	return indexes, nil
}

// DeleteIndex removes an index descriptor and its manifest pointer.
// Callers are responsible for having already removed its shards (IX
// orphan cleanup handles physical shard removal asynchronously).
func (c *Catalog) DeleteIndex(ctx context.Context, bucket, index string) error {
	if err := c.store.Delete(ctx, IndexDescriptorKey(bucket, index)); err != nil {
		return err
	}
	return c.store.Delete(ctx, ManifestPointerKey(bucket, index))
}
