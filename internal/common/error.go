package common

import "errors"

// Callers should use errors.Is to match these values.
var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Validation errors.
	ErrValidation = errors.New("validation error")

	// ErrSignatureMismatch means none of the caller's signatures authored the sighting.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrStoreUnavailable means the primary local store could not be opened.
	// It never reaches the user; the store switches to its fallback tier.
	ErrStoreUnavailable = errors.New("store unavailable")
)
