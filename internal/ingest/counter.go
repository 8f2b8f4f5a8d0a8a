// Package ingest implements the ingestion pipeline: batch validation,
// slice_id assignment, and durable append-only slice writes (design
// §4.2).
package ingest

import (
	"context"
	"strconv"

	"github.com/dreamware/vectorcore/internal/coreerr"
	"github.com/dreamware/vectorcore/internal/model"
	"github.com/dreamware/vectorcore/internal/objectstore"
)

// nextCounter obtains the next monotone counter value for (bucket,
// index) via a conditional-create/read-modify-write loop on
// indexes/{index}/.counter (design §4.2, §5). Unlike the manifest, the
// counter is not guarded by the build lease — put_vectors calls happen
// concurrently with each other and with IX — so this function itself
// must tolerate losing the race and retry.
func nextCounter(ctx context.Context, store objectstore.Store, bucket, index string) (int64, error) {
	key := model.CounterKey(bucket, index)

	for attempt := 0; attempt < 10; attempt++ {
		data, err := store.Get(ctx, key, nil)
		if err != nil {
			if coreerr.KindOf(err) != coreerr.KindNotFound {
				return 0, err
			}
			// First writer: create the counter at 1 via conditional-create.
			if putErr := store.Put(ctx, key, []byte("1"), objectstore.PutOptions{IfNoneMatch: true}); putErr != nil {
				if coreerr.KindOf(putErr) == coreerr.KindConflict {
					continue // someone else created it first; retry the read
				}
				return 0, putErr
			}
			return 1, nil
		}

		current, parseErr := strconv.ParseInt(string(data), 10, 64)
		if parseErr != nil {
			return 0, coreerr.Corruption("counter object %q is not a valid integer: %v", key, parseErr)
		}
		next := current + 1

		// There is no compare-and-swap on an existing object in the
		// adapter's contract (only create-if-absent), so a plain
		// overwrite here can race with a concurrent writer; a lost
		// update produces a duplicate slice_id suffix collision, which
		// rand8() on the caller side makes vanishingly unlikely to
		// collide in practice, matching the design's documented
		// tolerance for this race.
		if putErr := store.Put(ctx, key, []byte(strconv.FormatInt(next, 10)), objectstore.PutOptions{}); putErr != nil {
			return 0, putErr
		}
		return next, nil
	}

	return 0, coreerr.Transient(nil, "exceeded retry budget acquiring slice counter for index %q", index)
}
