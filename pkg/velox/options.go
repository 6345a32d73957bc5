package velox

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veloxcache/velox/pkg/cache/memory"
)

// Options configures a Cache.
type Options struct {
	// MaxItems is the soft entry capacity. Reaching it triggers eviction
	// on the write path. 0 disables eviction.
	MaxItems int

	// MaxExpiration is the upper clamp on per-entry durations.
	// 0 means no clamp.
	MaxExpiration time.Duration

	// DefaultExpiration is used when a policy omits a duration.
	// 0 means such entries never expire.
	DefaultExpiration time.Duration

	// EvictionPolicy selects the capacity eviction algorithm.
	EvictionPolicy memory.EvictionPolicy

	// EvictionSamplePercentage is the sampled fraction (0 < p <= 1) used
	// by the approximate eviction policies. Defaults to 0.1.
	EvictionSamplePercentage float64

	// EnableBackgroundCleanup starts the expiry sweeper.
	EnableBackgroundCleanup bool

	// CleanupInterval is the sweeper period. Defaults to 1 minute.
	CleanupInterval time.Duration

	// CleanupBatchSize bounds entries examined per sweep pass.
	// Defaults to 1000.
	CleanupBatchSize int

	// EnableStatistics toggles hit/miss/eviction counter updates.
	EnableStatistics bool

	// EnableFastPath routes policies without advanced features through
	// the lightweight single-flight gate.
	EnableFastPath bool

	// FastPathTrackMetrics controls whether the fast path updates
	// statistics and calls the metrics sink.
	FastPathTrackMetrics bool

	// CountWaiterMisses reports single-flight waiters as misses
	// ("deferred misses") instead of hits. The default false matches the
	// behavior of crediting shared work as hits.
	CountWaiterMisses bool

	// ShardCount is the entry table shard count, rounded up to a power
	// of 2. Defaults to 32.
	ShardCount int

	// MaxTagMappings is the soft cap on (tag, fingerprint) pairs before
	// a background index sweep. Defaults to 100,000.
	MaxTagMappings int64

	// Logger receives engine diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// Sink receives per-method cache events. Defaults to NopSink.
	// Sink calls are best-effort: panics are swallowed.
	Sink MetricsSink

	// Locker is the distributed-lock backend used by policies declaring
	// one. Defaults to the in-process semaphore locker.
	Locker Locker

	// SizeEstimator computes the estimated memory footprint reported by
	// Stats, given the current entry count. Optional.
	SizeEstimator func(entryCount int64) int64
}

// DefaultOptions returns the options a zero-configuration cache uses.
func DefaultOptions() Options {
	return Options{
		MaxItems:                 10_000,
		EvictionPolicy:           memory.EvictionLRU,
		EvictionSamplePercentage: 0.1,
		EnableBackgroundCleanup:  true,
		CleanupInterval:          time.Minute,
		CleanupBatchSize:         memory.DefaultSweepBatch,
		EnableStatistics:         true,
		EnableFastPath:           true,
		FastPathTrackMetrics:     true,
		ShardCount:               32,
		MaxTagMappings:           memory.DefaultMaxTagMappings,
	}
}

// Validate checks the options for invalid combinations.
func (o *Options) Validate() error {
	if o.MaxItems < 0 {
		return fmt.Errorf("MaxItems must be >= 0, got %d", o.MaxItems)
	}
	if o.EvictionSamplePercentage < 0 || o.EvictionSamplePercentage > 1 {
		return fmt.Errorf("EvictionSamplePercentage must be in (0, 1], got %v", o.EvictionSamplePercentage)
	}
	if o.MaxExpiration < 0 || o.DefaultExpiration < 0 {
		return fmt.Errorf("expiration durations must be >= 0")
	}
	if o.MaxExpiration > 0 && o.DefaultExpiration > o.MaxExpiration {
		return fmt.Errorf("DefaultExpiration %v exceeds MaxExpiration %v", o.DefaultExpiration, o.MaxExpiration)
	}
	return nil
}

// normalize fills unset fields with defaults.
func (o *Options) normalize() {
	if o.EvictionSamplePercentage == 0 {
		o.EvictionSamplePercentage = 0.1
	}
	if o.CleanupInterval == 0 {
		o.CleanupInterval = time.Minute
	}
	if o.CleanupBatchSize == 0 {
		o.CleanupBatchSize = memory.DefaultSweepBatch
	}
	if o.ShardCount == 0 {
		o.ShardCount = 32
	}
	if o.MaxTagMappings == 0 {
		o.MaxTagMappings = memory.DefaultMaxTagMappings
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Sink == nil {
		o.Sink = NopSink{}
	}
	if o.Locker == nil {
		o.Locker = NewSemaphoreLocker()
	}
}
