package objectstore

import "github.com/dreamware/vectorcore/internal/coreerr"

// errNotFound builds the NotFound error every Store implementation
// returns for a missing key, so callers can match on Kind regardless
// of backend.
func errNotFound(key string) error {
	return coreerr.NotFound("object %q not found", key)
}

// errPrecondition builds the Conflict error returned when a
// IfNoneMatch put loses the race against an existing object.
func errPrecondition(key string) error {
	return coreerr.Conflict("object %q already exists", key)
}

// rangeInvalidErr builds the error returned when a requested byte
// range falls outside an object's bounds.
func rangeInvalidErr(key string) error {
	return coreerr.Validation("invalid byte range for object %q", key)
}

// transientErr builds a retryable error simulating an object store
// 5xx/timeout for op on key.
func transientErr(op, key string) error {
	return coreerr.Transient(nil, "%s %q: simulated transient failure", op, key)
}
