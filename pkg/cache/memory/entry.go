package memory

import (
	"sync/atomic"
	"time"
)

// StampedeMode selects the stampede-prevention strategy applied when an
// existing, non-expired entry is read.
type StampedeMode uint8

const (
	// StampedeNone disables stampede prevention.
	StampedeNone StampedeMode = iota

	// StampedeProbabilistic forces early refresh with a probability that
	// grows exponentially with entry age (beta-exponential).
	StampedeProbabilistic

	// StampedeRefreshAhead forces refresh when the entry is within a
	// configured window of its expiration.
	StampedeRefreshAhead

	// StampedeDistributedLock never forces refresh on read; the lock is
	// acquired on actual miss by the single-flight coordinator.
	StampedeDistributedLock
)

// String returns the string representation of the stampede mode.
func (m StampedeMode) String() string {
	switch m {
	case StampedeNone:
		return "None"
	case StampedeProbabilistic:
		return "Probabilistic"
	case StampedeRefreshAhead:
		return "RefreshAhead"
	case StampedeDistributedLock:
		return "DistributedLock"
	default:
		return "Unknown"
	}
}

// EntryPolicy is the resolved, immutable policy stored on each entry.
// A zero EntryPolicy means "no advanced features": plain duration-based
// caching eligible for the fast single-flight path.
type EntryPolicy struct {
	// Duration is the absolute lifetime of the entry.
	// Zero means "use the cache default".
	Duration time.Duration

	// Sliding, when positive, extends the absolute expiration to
	// now+Sliding on every read hit.
	Sliding time.Duration

	// RefreshAhead, when positive, forces a refresh once the entry is
	// within this window of its absolute expiration.
	RefreshAhead time.Duration

	// Stampede selects the stampede-prevention mode.
	Stampede StampedeMode

	// Beta is the exponent for StampedeProbabilistic. Values <= 0 are
	// normalized to 1 during policy resolution.
	Beta float64

	// LockTimeout bounds distributed-lock acquisition. Zero means the
	// policy declares no distributed lock.
	LockTimeout time.Duration

	// LockConcurrency is the permit count of the per-fingerprint lock.
	LockConcurrency int64
}

// EmptyPolicy is the canonical "no advanced features" policy.
var EmptyPolicy = &EntryPolicy{}

// Advanced reports whether the policy carries any feature beyond a plain
// finite duration (sliding expiration, refresh-ahead, stampede prevention,
// or a distributed lock).
func (p *EntryPolicy) Advanced() bool {
	return p.Sliding > 0 || p.RefreshAhead > 0 ||
		p.Stampede != StampedeNone || p.LockTimeout > 0
}

// FastPathEligible reports whether the lightweight single-flight gate may
// coordinate misses for this policy.
func (p *EntryPolicy) FastPathEligible() bool {
	return !p.Advanced()
}

// Entry is a stored cache value with its metadata. The value, tags and
// policy are immutable after publication; access metadata uses atomics so
// read hits never take a write lock.
type Entry[V any] struct {
	value  V
	tags   []string
	policy *EntryPolicy

	createdAt   int64        // unix nanoseconds
	lastAccess  atomic.Int64 // unix nanoseconds
	expiresAt   atomic.Int64 // unix nanoseconds, 0 = never
	accessCount atomic.Int64
}

// Value returns the stored value.
func (e *Entry[V]) Value() V { return e.value }

// Tags returns the tag set the entry is indexed under. Nil when untagged.
// Callers must not mutate the returned slice.
func (e *Entry[V]) Tags() []string { return e.tags }

// Policy returns the resolved entry policy. Never nil.
func (e *Entry[V]) Policy() *EntryPolicy { return e.policy }

// CreatedAt returns the creation instant.
func (e *Entry[V]) CreatedAt() time.Time { return time.Unix(0, e.createdAt) }

// LastAccessedAt returns the most recent access instant.
func (e *Entry[V]) LastAccessedAt() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

// ExpiresAt returns the absolute expiration instant.
// The zero time means the entry never expires.
func (e *Entry[V]) ExpiresAt() time.Time {
	n := e.expiresAt.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// AccessCount returns the number of accesses, including creation.
func (e *Entry[V]) AccessCount() int64 { return e.accessCount.Load() }

// Expired reports whether the entry is past its absolute expiration.
func (e *Entry[V]) Expired(now time.Time) bool {
	n := e.expiresAt.Load()
	return n != 0 && n <= now.UnixNano()
}

// Touch records an access, updating the last-access timestamp and the
// access counter.
func (e *Entry[V]) Touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
	e.accessCount.Add(1)
}

// Slide advances the absolute expiration to now+sliding.
func (e *Entry[V]) Slide(now time.Time, sliding time.Duration) {
	e.expiresAt.Store(now.Add(sliding).UnixNano())
}

