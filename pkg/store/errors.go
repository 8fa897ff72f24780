package store

import "errors"

var (
	// ErrLockTimeout indicates another holder did not release the lock
	// within the configured window.
	ErrLockTimeout = errors.New("file lock timeout")

	// ErrNotFound indicates a read-intent open of a missing file.
	ErrNotFound = errors.New("file not found")
)
