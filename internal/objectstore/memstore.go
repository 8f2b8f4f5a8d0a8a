package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by tests for every component
// that depends on object storage, so lease acquisition, the manifest
// pointer flip, and retry-on-transient logic all run against the same
// Store contract the S3-backed adapter implements, not a hand-rolled
// mock of each caller's expectations.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]memObject

	// FailNextPuts, when > 0, makes the next N Put calls fail with a
	// Transient error, then resumes succeeding. Used to exercise the
	// object store adapter's retry policy.
	FailNextPuts int
}

type memObject struct {
	data         []byte
	etag         string
	lastModified time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string]memObject)}
}

func (m *MemStore) Put(_ context.Context, key string, data []byte, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNextPuts > 0 {
		m.FailNextPuts--
		return transientErr("put", key)
	}

	if opts.IfNoneMatch {
		if _, exists := m.objects[key]; exists {
			return errPrecondition(key)
		}
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	sum := sha256.Sum256(cp)
	m.objects[key] = memObject{
		data:         cp,
		etag:         hex.EncodeToString(sum[:]),
		lastModified: time.Now(),
	}
	return nil
}

func (m *MemStore) Get(_ context.Context, key string, rng *ByteRange) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, errNotFound(key)
	}
	if rng == nil {
		out := make([]byte, len(obj.data))
		copy(out, obj.data)
		return out, nil
	}
	if rng.Start < 0 || rng.End >= int64(len(obj.data)) || rng.Start > rng.End {
		return nil, rangeInvalidErr(key)
	}
	out := make([]byte, rng.End-rng.Start+1)
	copy(out, obj.data[rng.Start:rng.End+1])
	return out, nil
}

func (m *MemStore) Head(_ context.Context, key string) (ObjectMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return ObjectMeta{}, errNotFound(key)
	}
	return ObjectMeta{
		Key:          key,
		Size:         int64(len(obj.data)),
		ETag:         obj.etag,
		LastModified: obj.lastModified.Unix(),
	}, nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemStore) List(_ context.Context, prefix string, continuationToken string) (ListPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if continuationToken != "" {
		for i, k := range keys {
			if k > continuationToken {
				start = i
				break
			}
			start = i + 1
		}
	}

	const pageSize = 1000
	end := start + pageSize
	if end > len(keys) {
		end = len(keys)
	}

	page := ListPage{}
	for _, k := range keys[start:end] {
		obj := m.objects[k]
		page.Objects = append(page.Objects, ObjectMeta{
			Key:          k,
			Size:         int64(len(obj.data)),
			ETag:         obj.etag,
			LastModified: obj.lastModified.Unix(),
		})
	}
	if end < len(keys) {
		page.ContinuationToken = keys[end-1]
	}
	return page, nil
}
