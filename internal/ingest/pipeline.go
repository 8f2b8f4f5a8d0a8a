package ingest

import (
	"context"
	"time"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/metrics"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// Pipeline implements put_vectors: validate a batch against its index's
// descriptor, assign it a monotone slice_id, and write it as one
// immutable raw slice object (design §4.2). It never touches the
// manifest or a shard directly — that is the indexer's job, run out of
// band on its own schedule.
type Pipeline struct {
	store    objectstore.Store
	catalog  *model.Catalog
	batchCap int
}

// NewPipeline builds a Pipeline. batchCap bounds the number of records
// accepted per PutVectors call (config DefaultBatchCap).
func NewPipeline(store objectstore.Store, catalog *model.Catalog, batchCap int) *Pipeline {
	return &Pipeline{store: store, catalog: catalog, batchCap: batchCap}
}

// PutVectorsResult reports what a PutVectors call actually wrote.
type PutVectorsResult struct {
	SliceID     string
	VectorCount int
}

// PutVectors validates records against the named index's descriptor,
// then durably appends them as a new immutable slice under
// vectors/{bucket}/{index}/raw/. A zero-length batch is rejected: it
// would publish an empty slice that the indexer would have to special
// case for no benefit.
func (p *Pipeline) PutVectors(ctx context.Context, bucket, index string, records []model.VectorRecord) (PutVectorsResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveVecSeconds(metrics.IngestDuration, bucket, index)

	if len(records) == 0 {
		return PutVectorsResult{}, coreerr.Validation("put_vectors requires at least one record")
	}

	descriptor, err := p.catalog.GetIndex(ctx, bucket, index)
	if err != nil {
		return PutVectorsResult{}, err
	}

	if err := model.ValidateBatch(records, descriptor.Dimension, p.batchCap); err != nil {
		return PutVectorsResult{}, err
	}

	counter, err := nextCounter(ctx, p.store, bucket, index)
	if err != nil {
		return PutVectorsResult{}, err
	}
	sliceID, err := NewSliceID(counter)
	if err != nil {
		return PutVectorsResult{}, err
	}

	payload, err := EncodeSliceJSONL(records)
	if err != nil {
		return PutVectorsResult{}, err
	}

	key := model.RawSliceKey(bucket, index, sliceID, "jsonl")
	// A conditional-create here turns any accidental slice_id collision
	// (the counter race documented in nextCounter) into a visible
	// Conflict instead of a silent overwrite of someone else's slice.
	if err := p.store.Put(ctx, key, payload, objectstore.PutOptions{IfNoneMatch: true}); err != nil {
		return PutVectorsResult{}, err
	}

	meta := model.Slice{
		SliceID:     sliceID,
		Bucket:      bucket,
		IndexName:   index,
		VectorCount: len(records),
		Format:      model.SliceFormatJSONL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := model.WriteSliceMeta(ctx, p.store, meta); err != nil {
		return PutVectorsResult{}, err
	}

	metrics.SlicesIngestedTotal.WithLabelValues(bucket, index).Inc()
	metrics.VectorsIngestedTotal.WithLabelValues(bucket, index).Add(float64(len(records)))

	return PutVectorsResult{SliceID: sliceID, VectorCount: len(records)}, nil
}
