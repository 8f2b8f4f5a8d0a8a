package model

import (
	"context"
	"encoding/json"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// WriteSliceMeta persists a slice's own descriptive record next to its
// raw JSONL payload. The ingestion pipeline writes this once per slice
// so that components downstream of ingestion (the query planner's
// tombstone-vs-write ordering check, §4.4) have a durable created_at to
// compare against without re-reading the slice's full vector payload.
func WriteSliceMeta(ctx context.Context, store objectstore.Store, slice Slice) error {
	data, err := json.Marshal(slice)
	if err != nil {
		return coreerr.Fatal("marshal slice meta for %q: %v", slice.SliceID, err)
	}
	return store.Put(ctx, SliceMetaKey(slice.Bucket, slice.IndexName, slice.SliceID), data, objectstore.PutOptions{})
}

// ReadSliceMeta fetches a slice's descriptive record.
func ReadSliceMeta(ctx context.Context, store objectstore.Store, bucket, index, sliceID string) (Slice, error) {
	data, err := store.Get(ctx, SliceMetaKey(bucket, index, sliceID), nil)
	if err != nil {
		if coreerr.KindOf(err) == coreerr.KindNotFound {
			return Slice{}, coreerr.NotFound("slice meta %q not found", sliceID)
		}
		return Slice{}, err
	}
	var s Slice
	if err := json.Unmarshal(data, &s); err != nil {
		return Slice{}, coreerr.Corruption("slice meta %q is not valid JSON: %v", sliceID, err)
	}
	return s, nil
}
