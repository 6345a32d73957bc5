// Package velox provides the in-process cache engine of a method-result
// caching library: a keyed value store with per-entry expiration, tags,
// capacity-driven eviction, single-flight miss coordination, stampede
// prevention, and an optional distributed-lock seam.
//
// Fingerprints are opaque string keys produced externally from method
// metadata and arguments; values are opaque payloads the engine never
// inspects or serializes.
package velox

import "errors"

// Sentinel errors returned by cache operations.
var (
	// ErrNotFound indicates the requested fingerprint was not present or
	// had expired.
	ErrNotFound = errors.New("fingerprint not found")

	// ErrClosed indicates the cache has been closed and cannot be used.
	ErrClosed = errors.New("cache closed")

	// ErrInvalidKey indicates an empty or blank fingerprint.
	ErrInvalidKey = errors.New("invalid fingerprint")

	// ErrInvalidArgument indicates a required argument was nil.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTimeout indicates distributed-lock acquisition did not complete
	// within the configured timeout.
	ErrTimeout = errors.New("distributed lock acquisition timed out")
)

// IsNotFound returns true if the error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTimeout returns true if the error is or wraps ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsClosed returns true if the error is or wraps ErrClosed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
