// Package objectstore is the thin capability layer every other
// vectorcore component depends on: put/get/head/delete/list against an
// S3-compatible object store, with the conditional-put primitive the
// rest of the core relies on for concurrency control (design §4.1, §5).
package objectstore

import (
	"bytes"
	"context"
	"io"
)

// ByteRange requests a partial object by inclusive byte offsets. End is
// exclusive of nothing special: both bounds are inclusive, matching an
// HTTP Range header's semantics. A zero-value ByteRange (both fields 0)
// is never passed as "no range" — callers use a nil *ByteRange instead.
type ByteRange struct {
	Start int64
	End   int64
}

// PutOptions configures a Put call.
type PutOptions struct {
	// IfNoneMatch, when true, makes the put fail with a
	// *coreerr.CoreError of KindConflict if the key already exists. This
	// is the adapter's sole concurrency primitive (design §4.1).
	IfNoneMatch bool
}

// ObjectMeta is what Head and List return about an object without
// fetching its body.
type ObjectMeta struct {
	Key          string
	Size         int64
	ETag         string
	LastModified int64 // unix seconds
}

// ListPage is one page of a prefix listing.
type ListPage struct {
	Objects           []ObjectMeta
	ContinuationToken string // empty when there are no more pages
}

// Store is the object store capability every vectorcore component
// consumes. A production Store wraps aws-sdk-go-v2's S3 client
// (S3Store); tests use the in-memory MemStore implementing the same
// contract so lease CAS and manifest pointer-flip logic run against
// real code paths without a network dependency.
type Store interface {
	// Put writes bytes under key. With opts.IfNoneMatch, it fails with a
	// Conflict error if key already exists.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	// Get returns the full object, or the given byte range, at key. A
	// nil rng means the whole object. Missing keys return a NotFound
	// error.
	Get(ctx context.Context, key string, rng *ByteRange) ([]byte, error)
	// Head returns metadata about key without fetching its body.
	Head(ctx context.Context, key string) (ObjectMeta, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns objects whose key starts with prefix, one page at a
	// time. Pass the previous page's ContinuationToken to fetch the
	// next; an empty token starts from the beginning.
	List(ctx context.Context, prefix string, continuationToken string) (ListPage, error)
}

// GetAll drains a Store's Get into an io.Reader-friendly shape; kept as
// a small helper since most callers just want the whole object.
func GetAll(ctx context.Context, s Store, key string) ([]byte, error) {
	return s.Get(ctx, key, nil)
}

// ReadCloserFrom adapts a byte slice returned by Store.Get to an
// io.ReadCloser for callers that stream-decode (e.g. JSONL slices).
func ReadCloserFrom(data []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(data))
}
