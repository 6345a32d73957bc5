package velox

// Stats is a point-in-time snapshot of cache counters. Counters are
// updated with relaxed atomics; values are not guaranteed consistent with
// each other across a single snapshot.
type Stats struct {
	// Hits is the number of reads served from the cache.
	Hits int64

	// Misses is the number of reads that ran the factory.
	Misses int64

	// Sets is the number of entry insertions.
	Sets int64

	// Deletes is the number of explicit removals (keys, tags, patterns).
	Deletes int64

	// Evictions is the number of capacity-driven removals.
	Evictions int64

	// Expirations is the number of expiry-driven removals (lazy or
	// swept).
	Expirations int64

	// EntryCount is the current number of entries.
	EntryCount int64

	// TagMappings is the current (tag, fingerprint) pair count.
	TagMappings int64

	// EstimatedSize is the estimated memory footprint in bytes, computed
	// by the configured SizeEstimator. 0 when no estimator is set.
	EstimatedSize int64

	// HitRate is the hit fraction in [0, 1].
	HitRate float64
}
