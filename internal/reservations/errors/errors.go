package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	// ErrVersionConflict means the compared version did not match at write
	// time: another mutation committed first. Retryable from scratch.
	ErrVersionConflict = errors.New("reservation was modified concurrently")

	// ErrLockHeld means another request holds the admission lock for the
	// category. Retryable after a short backoff.
	ErrLockHeld = errors.New("admission lock is held by another request")
)
