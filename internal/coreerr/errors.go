// Package coreerr provides the structured error taxonomy shared by every
// vectorcore component: object store, ingestion, indexer, and query planner.
//
// Errors are classified by Kind, not by type assertion on a concrete struct.
// Callers that need to branch on failure mode should use KindOf, not a type
// switch, so that wrapped errors (via fmt.Errorf("...: %w", err)) still
// classify correctly.
package coreerr

import "fmt"

// Kind is the error taxonomy from the design's propagation policy: local
// recovery happens at the object store adapter (Transient retries) and at
// the query planner (Corruption quarantine); everything else propagates.
type Kind string

const (
	// KindValidation is a malformed request: wrong dimension, unknown
	// metric, bad name. Never retried.
	KindValidation Kind = "VALIDATION"
	// KindNotFound is an absent bucket/index/key. Never retried.
	KindNotFound Kind = "NOT_FOUND"
	// KindConflict is an existing bucket/index, a non-empty bucket on
	// delete, or a lease held by another worker. User-facing conflicts are
	// surfaced; indexer conflicts are retried with backoff by the caller.
	KindConflict Kind = "CONFLICT"
	// KindTransient is an object store 5xx/timeout. Retried with backoff
	// up to the caller's deadline; once attempts or the deadline run out,
	// the last Transient error is returned unchanged.
	KindTransient Kind = "TRANSIENT"
	// KindCorruption is a checksum mismatch, truncated artifact, or
	// dimension mismatch between a shard's config and its trained index.
	KindCorruption Kind = "CORRUPTION"
	// KindFatal is a violated internal invariant (e.g. keymap length !=
	// index ntotal). Not recoverable; the caller should abort and log.
	KindFatal Kind = "FATAL"
)

// CoreError is the structured error type returned by every vectorcore
// component. It implements error, Unwrap, and Is so that errors.Is/As and
// %w wrapping both work as expected.
type CoreError struct {
	Kind      Kind
	Message   string
	Details   map[string]string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, &CoreError{Kind: KindNotFound}) style matching
// by Kind alone, ignoring Message/Details/Cause.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *CoreError) WithDetail(key, value string) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func newErr(kind Kind, retryable bool, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Message: fmt.Sprintf(format, args...), Retryable: retryable}
}

// Validation creates a KindValidation error.
func Validation(format string, args ...any) *CoreError {
	return newErr(KindValidation, false, format, args...)
}

// NotFound creates a KindNotFound error.
func NotFound(format string, args ...any) *CoreError {
	return newErr(KindNotFound, false, format, args...)
}

// Conflict creates a KindConflict error.
func Conflict(format string, args ...any) *CoreError {
	return newErr(KindConflict, false, format, args...)
}

// Transient creates a KindTransient error from an underlying cause.
func Transient(cause error, format string, args ...any) *CoreError {
	e := newErr(KindTransient, true, format, args...)
	e.Cause = cause
	return e
}

// Corruption creates a KindCorruption error.
func Corruption(format string, args ...any) *CoreError {
	return newErr(KindCorruption, false, format, args...)
}

// Fatal creates a KindFatal error.
func Fatal(format string, args ...any) *CoreError {
	return newErr(KindFatal, false, format, args...)
}

// Wrap classifies an existing error as the given kind, preserving it as
// Cause.
func Wrap(kind Kind, cause error, format string, args ...any) *CoreError {
	if cause == nil {
		return nil
	}
	e := newErr(kind, kind == KindTransient, format, args...)
	e.Cause = cause
	return e
}

// KindOf extracts the Kind from err, walking the Unwrap chain. Returns
// KindFatal for errors that aren't a *CoreError anywhere in the chain,
// since an unclassified error is, by definition, not something the system
// knows how to recover from.
func KindOf(err error) Kind {
	for err != nil {
		if ce, ok := err.(*CoreError); ok {
			return ce.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindFatal
}

// IsRetryable reports whether err (or anything in its chain) is a
// *CoreError marked Retryable.
func IsRetryable(err error) bool {
	for err != nil {
		if ce, ok := err.(*CoreError); ok {
			return ce.Retryable
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
