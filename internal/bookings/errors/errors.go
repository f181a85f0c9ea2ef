package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrConflict means another admission for the same vehicle won a race:
	// the advisory lock is held or the store refused an overlapping insert.
	// Callers retry it; it is never shown to clients directly.
	ErrConflict = errors.New("concurrent admission conflict")

	// ErrLockHeld is joined with ErrConflict when another admission holds
	// the vehicle's advisory lock, as opposed to a store-refused insert.
	ErrLockHeld = errors.New("vehicle lock held by another admission")

	ErrLockNotHeld = errors.New("booking lock is not held by this owner")
)
