package vr

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the record store and the audio service.
// Callers match them with errors.Is; the wrapped message carries the detail.
var (
	// ErrNotFound is returned when an id or share token does not resolve to a record.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation is returned when a write would break a store
	// constraint, such as two records holding the same share token.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidInput is returned when caller-supplied values are rejected
	// before reaching storage (empty name, negative duration, ...).
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable is returned when the database or the payload
	// vault fails to open, read or write. It is never retried internally.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// isKnown reports whether err already carries one of the sentinels above.
func isKnown(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrStorageUnavailable)
}

// storageErr wraps a vault or codec failure. Errors that already carry a
// sentinel keep it; anything else becomes ErrStorageUnavailable.
func storageErr(msg string, err error) error {
	if isKnown(err) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrStorageUnavailable, err)
}
