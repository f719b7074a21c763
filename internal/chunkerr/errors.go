// Package chunkerr defines the error taxonomy shared by the chunking
// engine and its storage adapters.
package chunkerr

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Sentinel) so callers
// can still errors.Is against the category while keeping detail.
var (
	// InvalidInput covers malformed chunk ids, empty merge input, an
	// unknown type tag, or a missing required chunk field.
	InvalidInput = errors.New("invalid input")

	// NoStrategy means no strategy is registered for a requested type.
	NoStrategy = errors.New("no strategy registered for type")

	// DepthExceeded means recursion went past the depth cap.
	DepthExceeded = errors.New("depth exceeded")

	// StorageTransient covers backend timeouts, connection loss, and
	// transient command failures. Subject to retry.
	StorageTransient = errors.New("transient storage error")

	// StoragePermanent covers serialization failures, schema
	// mismatches, and integrity violations. Never retried.
	StoragePermanent = errors.New("permanent storage error")

	// LockUnavailable means a lock is held by another writer and is
	// not stale. Callers downgrade this to a warning and proceed
	// without the lock.
	LockUnavailable = errors.New("lock unavailable")
)

// Is reports whether err is (or wraps) target, a thin re-export of
// errors.Is so call sites need only import this package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
