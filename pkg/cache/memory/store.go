package memory

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// StoreConfig configures the sharded entry table.
type StoreConfig struct {
	// ShardCount is the number of shards. Rounded up to a power of 2.
	// If 0, defaults to 32.
	ShardCount int

	// MaxTagMappings is the soft cap on (tag, fingerprint) pairs in the
	// reverse index before a background sweep is initiated.
	MaxTagMappings int64

	// EnableStatistics toggles counter updates.
	EnableStatistics bool

	// Logger receives engine diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Store is the primary keyed entry table, partitioned across shards so
// the read path never takes a global lock. Each shard guards its map with
// an RWMutex; entry access metadata is atomic, so read hits hold only a
// shard read lock.
//
// The store owns its entries exclusively and sequences every removal with
// de-indexing in the tag reverse index.
type Store[V any] struct {
	shards    []*shard[V]
	shardMask uint64

	metrics *Metrics
	tags    *TagIndex
}

type shard[V any] struct {
	mu   sync.RWMutex
	data map[string]*Entry[V]
}

// NewStore creates a sharded entry table with the given configuration.
func NewStore[V any](cfg StoreConfig) *Store[V] {
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = 32
	}
	if cfg.ShardCount&(cfg.ShardCount-1) != 0 {
		n := 1
		for n < cfg.ShardCount {
			n <<= 1
		}
		cfg.ShardCount = n
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Store[V]{
		shards:    make([]*shard[V], cfg.ShardCount),
		shardMask: uint64(cfg.ShardCount - 1),
		metrics:   NewMetrics(cfg.EnableStatistics),
		tags:      NewTagIndex(cfg.MaxTagMappings, cfg.Logger),
	}
	for i := range s.shards {
		s.shards[i] = &shard[V]{data: make(map[string]*Entry[V])}
	}
	s.tags.present = s.Contains
	return s
}

func (s *Store[V]) shardFor(fingerprint string) *shard[V] {
	return s.shards[xxhash.Sum64String(fingerprint)&s.shardMask]
}

// Metrics returns the engine counter set.
func (s *Store[V]) Metrics() *Metrics { return s.metrics }

// Tags returns the tag reverse index.
func (s *Store[V]) Tags() *TagIndex { return s.tags }

// NewEntry builds an entry ready for insertion. expires may be the zero
// time for entries that never expire.
func (s *Store[V]) NewEntry(value V, tags []string, policy *EntryPolicy, now, expires time.Time) *Entry[V] {
	if policy == nil {
		policy = EmptyPolicy
	}
	e := &Entry[V]{
		value:     value,
		tags:      tags,
		policy:    policy,
		createdAt: now.UnixNano(),
	}
	e.lastAccess.Store(now.UnixNano())
	e.accessCount.Store(1)
	if !expires.IsZero() {
		e.expiresAt.Store(expires.UnixNano())
	}
	return e
}

// Get returns the entry for fingerprint if present and not expired.
// Expired entries are lazily removed, with the removal sequenced against
// tag de-indexing.
func (s *Store[V]) Get(fingerprint string, now time.Time) (*Entry[V], bool) {
	sh := s.shardFor(fingerprint)

	sh.mu.RLock()
	e, ok := sh.data[fingerprint]
	if !ok {
		sh.mu.RUnlock()
		return nil, false
	}
	if !e.Expired(now) {
		sh.mu.RUnlock()
		return e, true
	}
	sh.mu.RUnlock()

	// Lazy expiration: upgrade to a write lock and re-check.
	sh.mu.Lock()
	e, ok = sh.data[fingerprint]
	if ok && e.Expired(now) {
		delete(sh.data, fingerprint)
		tags := e.tags
		sh.mu.Unlock()
		s.tags.Remove(fingerprint, tags)
		s.metrics.RecordExpiration()
		return nil, false
	}
	sh.mu.Unlock()
	if ok {
		return e, true
	}
	return nil, false
}

// Insert stores the entry under fingerprint, replacing any previous entry
// and keeping the tag index in step.
func (s *Store[V]) Insert(fingerprint string, e *Entry[V]) {
	sh := s.shardFor(fingerprint)

	sh.mu.Lock()
	old, replaced := sh.data[fingerprint]
	sh.data[fingerprint] = e
	var oldTags []string
	if replaced {
		oldTags = old.tags
	}
	sh.mu.Unlock()

	if replaced {
		s.tags.Remove(fingerprint, oldTags)
	}
	s.tags.Add(fingerprint, e.tags)
	s.metrics.RecordSet()
}

// Remove deletes the entry for fingerprint, de-indexing its tags.
// Returns false when the fingerprint was not present.
func (s *Store[V]) Remove(fingerprint string) bool {
	return s.remove(fingerprint, (*Metrics).RecordDelete)
}

// RemoveEvicted deletes the entry for fingerprint on behalf of the
// eviction engine.
func (s *Store[V]) RemoveEvicted(fingerprint string) bool {
	return s.remove(fingerprint, (*Metrics).RecordEviction)
}

// RemoveIfExpired deletes the entry only if it is past its expiration.
// Used by the background sweeper.
func (s *Store[V]) RemoveIfExpired(fingerprint string, now time.Time) bool {
	sh := s.shardFor(fingerprint)

	sh.mu.Lock()
	e, ok := sh.data[fingerprint]
	if !ok || !e.Expired(now) {
		sh.mu.Unlock()
		return false
	}
	delete(sh.data, fingerprint)
	tags := e.tags
	sh.mu.Unlock()

	s.tags.Remove(fingerprint, tags)
	s.metrics.RecordExpiration()
	return true
}

func (s *Store[V]) remove(fingerprint string, record func(*Metrics)) bool {
	sh := s.shardFor(fingerprint)

	sh.mu.Lock()
	e, ok := sh.data[fingerprint]
	if !ok {
		sh.mu.Unlock()
		return false
	}
	delete(sh.data, fingerprint)
	tags := e.tags
	sh.mu.Unlock()

	s.tags.Remove(fingerprint, tags)
	record(s.metrics)
	return true
}

// Contains reports whether fingerprint is present, ignoring expiration.
func (s *Store[V]) Contains(fingerprint string) bool {
	sh := s.shardFor(fingerprint)
	sh.mu.RLock()
	_, ok := sh.data[fingerprint]
	sh.mu.RUnlock()
	return ok
}

// Len returns the total entry count across all shards.
func (s *Store[V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.data)
		sh.mu.RUnlock()
	}
	return total
}

// Keys returns up to limit fingerprints currently in the table, in no
// particular order. limit <= 0 enumerates everything. Intended for
// diagnostics and tests; concurrent writers may make the snapshot
// immediately stale.
func (s *Store[V]) Keys(limit int) []string {
	var keys []string
	if limit > 0 {
		keys = make([]string, 0, limit)
	}
	s.Range(func(fp string, _ *Entry[V]) bool {
		keys = append(keys, fp)
		return limit <= 0 || len(keys) < limit
	})
	return keys
}

// Range calls f for each entry until f returns false. Iteration holds one
// shard read lock at a time; entries inserted or removed concurrently may
// or may not be observed.
func (s *Store[V]) Range(f func(fingerprint string, e *Entry[V]) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for fp, e := range sh.data {
			if !f(fp, e) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Clear drops every entry, the tag index, and resets counters.
func (s *Store[V]) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.data = make(map[string]*Entry[V])
		sh.mu.Unlock()
	}
	s.tags.Clear()
	s.metrics.Reset()
}
