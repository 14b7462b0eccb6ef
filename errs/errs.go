// Package errs defines the error taxonomy shared by every package in this
// module: storage/object-db failures, missing keys/commits/refs, malformed
// input, unresolved merge conflicts and node corruption.
package errs

import (
	"github.com/cockroachdb/errors"
)

// Sentinel kinds. Call sites branch on these with errors.Is; cockroachdb/errors
// attaches a stack trace at the point of Wrap/Newf so failures stay
// diagnosable without every package hand-rolling its own trace capture.
var (
	// ErrNotFound means a key, commit, or ref is missing.
	ErrNotFound = errors.New("not found")
	// ErrStorage means the underlying NodeStore or object-db failed.
	ErrStorage = errors.New("storage error")
	// ErrInvalidInput means malformed commit id, empty branch name, or similar.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCorruption means a node failed to deserialise or a child digest has no blob.
	ErrCorruption = errors.New("corruption")
	// ErrMergeConflict means one or more conflicts were not resolved by the resolver.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrConcurrency means a poisoned lock propagated from a panicking writer.
	ErrConcurrency = errors.New("concurrency error")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrNotFound, format, args...)
}

// Storagef wraps ErrStorage with a formatted message and the original cause.
// errors.Mark keeps cause in the chain (so the underlying badger/disk error is
// still visible) while making errors.Is(result, ErrStorage) true, the same
// way NotFoundf/InvalidInputf/Corruptionf make their own sentinel true.
func Storagef(cause error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(cause, format, args...), ErrStorage)
}

// InvalidInputf wraps ErrInvalidInput with a formatted message.
func InvalidInputf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrInvalidInput, format, args...)
}

// Corruptionf wraps ErrCorruption with a formatted message.
func Corruptionf(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrCorruption, format, args...)
}

// Is reports whether err has kind in its chain.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
