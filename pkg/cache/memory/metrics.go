package memory

import "sync/atomic"

// Metrics holds engine counters using lock-free atomic operations.
// Updates are relaxed: a snapshot is point-in-time per counter and not
// guaranteed consistent across counters.
type Metrics struct {
	enabled bool

	hits        atomic.Int64
	misses      atomic.Int64
	sets        atomic.Int64
	deletes     atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Deletes     int64
	Evictions   int64
	Expirations int64
}

// NewMetrics creates a counter set. When enabled is false every Record
// call is a no-op, keeping the hot paths branch-cheap.
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// RecordHit atomically increments the hit counter.
func (m *Metrics) RecordHit() {
	if !m.enabled {
		return
	}
	m.hits.Add(1)
}

// RecordMiss atomically increments the miss counter.
func (m *Metrics) RecordMiss() {
	if !m.enabled {
		return
	}
	m.misses.Add(1)
}

// RecordSet atomically increments the set counter.
func (m *Metrics) RecordSet() {
	if !m.enabled {
		return
	}
	m.sets.Add(1)
}

// RecordDelete atomically increments the delete counter.
func (m *Metrics) RecordDelete() {
	if !m.enabled {
		return
	}
	m.deletes.Add(1)
}

// RecordEviction atomically increments the eviction counter.
func (m *Metrics) RecordEviction() {
	if !m.enabled {
		return
	}
	m.evictions.Add(1)
}

// RecordExpiration atomically increments the expiration counter.
func (m *Metrics) RecordExpiration() {
	if !m.enabled {
		return
	}
	m.expirations.Add(1)
}

// Snapshot returns a point-in-time snapshot of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Sets:        m.sets.Load(),
		Deletes:     m.deletes.Load(),
		Evictions:   m.evictions.Load(),
		Expirations: m.expirations.Load(),
	}
}

// HitRate returns the hit rate in [0, 1].
func (m *Metrics) HitRate() float64 {
	hits := m.hits.Load()
	total := hits + m.misses.Load()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

// Reset zeroes all counters.
func (m *Metrics) Reset() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.sets.Store(0)
	m.deletes.Store(0)
	m.evictions.Store(0)
	m.expirations.Store(0)
}
