package velox

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/veloxcache/velox/pkg/cache/memory"
)

// evictionReasonCapacity is reported to the sink for capacity-driven
// removals.
const evictionReasonCapacity = "capacity"

// Cache is the method-result cache facade. It composes the sharded entry
// table, the tag reverse index, the single-flight gates, the stampede
// controller, the eviction engine, and the expiry sweeper behind a small
// operation set.
//
// Values are statically typed: a Cache[V] stores only V, so type
// mismatches are rejected at the API boundary rather than compensated on
// read.
//
// All operations are safe for concurrent use.
type Cache[V any] struct {
	opts    Options
	store   *memory.Store[V]
	evictor *memory.Evictor[V]
	sweeper *memory.Sweeper[V]
	flights atomic.Pointer[flights[V]]
	locker  Locker
	sink    MetricsSink
	logger  *zap.Logger
	closed  atomic.Bool
}

// New creates a cache with the given options. Zero-value fields fall back
// to defaults; see DefaultOptions for the zero-configuration baseline.
func New[V any](opts Options) (*Cache[V], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.normalize()

	store := memory.NewStore[V](memory.StoreConfig{
		ShardCount:       opts.ShardCount,
		MaxTagMappings:   opts.MaxTagMappings,
		EnableStatistics: opts.EnableStatistics,
		Logger:           opts.Logger,
	})

	c := &Cache[V]{
		opts:    opts,
		store:   store,
		evictor: memory.NewEvictor(store, opts.EvictionPolicy, opts.MaxItems, opts.EvictionSamplePercentage),
		locker:  opts.Locker,
		sink:    safeSink{inner: opts.Sink},
		logger:  opts.Logger,
	}
	c.flights.Store(&flights[V]{})

	if opts.EnableBackgroundCleanup {
		c.sweeper = memory.NewSweeper(store, opts.CleanupInterval, opts.CleanupBatchSize, opts.Logger)
		c.sweeper.Start()
	}

	return c, nil
}

// GetOrCreate returns the cached value for fingerprint, running factory
// to produce it on miss. Concurrent callers for the same fingerprint
// share one factory invocation. The policy decides expiration, tags,
// stampede prevention, and distributed locking; a nil policy means cache
// defaults. method labels metrics-sink events.
//
// Fails only when the factory fails, the distributed lock times out, the
// caller's context is canceled while waiting, an argument is invalid, or
// the cache is closed.
func (c *Cache[V]) GetOrCreate(ctx context.Context, fingerprint string, factory func(context.Context) (V, error), policy *RuntimePolicy, method string) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if strings.TrimSpace(fingerprint) == "" {
		return zero, ErrInvalidKey
	}
	if factory == nil {
		return zero, ErrInvalidArgument
	}

	ep := resolve(policy)
	now := time.Now()

	force := false
	if e, ok := c.store.Get(fingerprint, now); ok {
		if !ep.Advanced() || !shouldForceRefresh(e, now, c.opts.DefaultExpiration) {
			c.touchOnHit(e, now)
			c.recordHit(method, true)
			return e.Value(), nil
		}
		// Forced refresh: fall through to the miss path.
		force = true
	}

	if ep.LockTimeout > 0 {
		// Distributed-lock policies coordinate through the lock itself:
		// every caller contends for a permit the way separate processes
		// would, rather than coalescing on the in-process gate.
		return c.missLocked(ctx, fingerprint, factory, ep, policy.Tags(), method, force)
	}
	if c.opts.EnableFastPath && ep.FastPathEligible() {
		return c.missFast(ctx, fingerprint, factory, ep, policy.Tags(), method)
	}
	return c.missHeavy(ctx, fingerprint, factory, ep, policy.Tags(), method, force)
}

// TryGet is the pure read path: it returns the value iff the fingerprint
// is present and not expired. It does not coordinate concurrent writers
// and does not update access metadata.
func (c *Cache[V]) TryGet(fingerprint string) (V, bool) {
	var zero V
	if c.closed.Load() || strings.TrimSpace(fingerprint) == "" {
		return zero, false
	}
	e, ok := c.store.Get(fingerprint, time.Now())
	if !ok {
		return zero, false
	}
	return e.Value(), true
}

// Set stores value under fingerprint directly, bypassing the factory
// path. Subject to the same policy resolution and eviction as a miss.
func (c *Cache[V]) Set(ctx context.Context, fingerprint string, value V, policy *RuntimePolicy) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if strings.TrimSpace(fingerprint) == "" {
		return ErrInvalidKey
	}
	c.insert(ctx, fingerprint, value, resolve(policy), policy.Tags(), "Set")
	return nil
}

// InvalidateByKeys removes each fingerprint completely.
func (c *Cache[V]) InvalidateByKeys(fingerprints ...string) {
	if c.closed.Load() {
		return
	}
	for _, fp := range fingerprints {
		if c.store.Remove(fp) {
			c.locker.Forget(fp)
		}
	}
}

// InvalidateByTags removes every entry declaring any of the given tags.
func (c *Cache[V]) InvalidateByTags(tags ...string) {
	if c.closed.Load() || len(tags) == 0 {
		return
	}
	c.InvalidateByKeys(c.store.Tags().Lookup(tags...)...)
}

// InvalidateByTagPattern removes every entry whose tags match the glob
// pattern ('*' any run, '?' one character). Invalid patterns are no-ops:
// they are logged at debug level and never propagate errors into hot
// paths.
func (c *Cache[V]) InvalidateByTagPattern(pattern string) {
	if c.closed.Load() {
		return
	}
	re, err := compileTagPattern(pattern)
	if err != nil {
		c.logger.Debug("invalid tag pattern ignored",
			zap.String("pattern", pattern),
			zap.Error(err),
		)
		return
	}

	var matched []string
	for _, tag := range c.store.Tags().Names() {
		if re.MatchString(tag) {
			matched = append(matched, tag)
		}
	}
	if len(matched) > 0 {
		c.InvalidateByTags(matched...)
	}
}

// Clear drops all entries and in-flight gates and resets statistics.
func (c *Cache[V]) Clear() {
	c.flights.Store(&flights[V]{})
	c.store.Clear()
}

// Stats returns a snapshot of cache counters plus the current entry
// count and estimated size.
func (c *Cache[V]) Stats() Stats {
	m := c.store.Metrics()
	snap := m.Snapshot()
	entryCount := int64(c.store.Len())

	var estimated int64
	if c.opts.SizeEstimator != nil {
		estimated = c.opts.SizeEstimator(entryCount)
	}

	return Stats{
		Hits:          snap.Hits,
		Misses:        snap.Misses,
		Sets:          snap.Sets,
		Deletes:       snap.Deletes,
		Evictions:     snap.Evictions,
		Expirations:   snap.Expirations,
		EntryCount:    entryCount,
		TagMappings:   c.store.Tags().Mappings(),
		EstimatedSize: estimated,
		HitRate:       m.HitRate(),
	}
}

// Close stops the sweeper and drops all state. Operations after Close
// return ErrClosed.
func (c *Cache[V]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if c.sweeper != nil {
		c.sweeper.Stop()
	}
	c.flights.Store(&flights[V]{})
	c.store.Clear()
	return nil
}

// missFast resolves a miss through the lightweight gate.
func (c *Cache[V]) missFast(ctx context.Context, fingerprint string, factory func(context.Context) (V, error), ep *memory.EntryPolicy, tags []string, method string) (V, error) {
	tracked := c.opts.FastPathTrackMetrics

	v, coordinator, err := c.flights.Load().doFast(fingerprint, func() (V, error) {
		// A previous coordinator may have completed between this
		// caller's table miss and its gate installation.
		now := time.Now()
		if e, ok := c.store.Get(fingerprint, now); ok {
			c.touchOnHit(e, now)
			c.recordHit(method, tracked)
			return e.Value(), nil
		}

		c.recordMiss(method, tracked)
		value, ferr := factory(ctx)
		if ferr != nil {
			c.sink.OnError(method, ferr.Error())
			var zero V
			return zero, ferr
		}
		c.insert(ctx, fingerprint, value, ep, tags, method)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	if !coordinator {
		c.recordWaiter(method, tracked)
	}
	return v, nil
}

// missHeavy resolves a miss through the heavyweight gate.
func (c *Cache[V]) missHeavy(ctx context.Context, fingerprint string, factory func(context.Context) (V, error), ep *memory.EntryPolicy, tags []string, method string, force bool) (V, error) {
	v, coordinator, err := c.flights.Load().doHeavy(ctx, fingerprint, func(ctx context.Context) (V, error) {
		if !force {
			now := time.Now()
			if e, ok := c.store.Get(fingerprint, now); ok && !shouldForceRefresh(e, now, c.opts.DefaultExpiration) {
				c.touchOnHit(e, now)
				c.recordHit(method, true)
				return e.Value(), nil
			}
		}

		c.recordMiss(method, true)
		value, ferr := factory(ctx)
		if ferr != nil {
			c.sink.OnError(method, ferr.Error())
			var zero V
			return zero, ferr
		}
		c.insert(ctx, fingerprint, value, ep, tags, method)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	if !coordinator {
		c.recordWaiter(method, true)
	}
	return v, nil
}

// missLocked resolves a miss under the policy's distributed lock with a
// double-checked read: another permit holder may have populated the entry
// while this caller waited.
func (c *Cache[V]) missLocked(ctx context.Context, fingerprint string, factory func(context.Context) (V, error), ep *memory.EntryPolicy, tags []string, method string, force bool) (V, error) {
	var zero V

	release, err := c.locker.Acquire(ctx, fingerprint, ep.LockTimeout, ep.LockConcurrency)
	if err != nil {
		c.sink.OnError(method, err.Error())
		return zero, err
	}
	defer release()

	if !force {
		now := time.Now()
		if e, ok := c.store.Get(fingerprint, now); ok && !shouldForceRefresh(e, now, c.opts.DefaultExpiration) {
			c.touchOnHit(e, now)
			c.recordHit(method, true)
			return e.Value(), nil
		}
	}

	c.recordMiss(method, true)
	value, ferr := factory(ctx)
	if ferr != nil {
		c.sink.OnError(method, ferr.Error())
		return zero, ferr
	}
	c.insert(ctx, fingerprint, value, ep, tags, method)
	return value, nil
}

// insert evicts if the table is at capacity, then publishes the entry
// and its tag mappings.
func (c *Cache[V]) insert(ctx context.Context, fingerprint string, value V, ep *memory.EntryPolicy, tags []string, method string) {
	for i := c.evictor.MaybeEvict(ctx); i > 0; i-- {
		c.sink.OnEviction(method, evictionReasonCapacity)
	}

	now := time.Now()
	e := c.store.NewEntry(value, tags, ep, now, c.expiration(ep, now))
	c.store.Insert(fingerprint, e)
}

// expiration computes the absolute expiration for a new entry: sliding
// windows start at now+sliding, otherwise the policy duration (defaulted
// and clamped per options) applies. The zero time means never.
func (c *Cache[V]) expiration(ep *memory.EntryPolicy, now time.Time) time.Time {
	if ep.Sliding > 0 {
		return now.Add(ep.Sliding)
	}

	d := ep.Duration
	if d == 0 {
		d = c.opts.DefaultExpiration
	}
	if c.opts.MaxExpiration > 0 && d > c.opts.MaxExpiration {
		d = c.opts.MaxExpiration
	}
	if d <= 0 {
		return time.Time{}
	}
	return now.Add(d)
}

// touchOnHit applies the read-path access update policy: entries with
// advanced features always update access metadata (and slide their
// expiration); otherwise metadata is updated only when the eviction
// policy orders by recency or frequency.
func (c *Cache[V]) touchOnHit(e *memory.Entry[V], now time.Time) {
	p := e.Policy()
	if p.Advanced() {
		e.Touch(now)
		if p.Sliding > 0 {
			e.Slide(now, p.Sliding)
		}
		return
	}
	if c.opts.EvictionPolicy.NeedsRecency() {
		e.Touch(now)
	}
}

func (c *Cache[V]) recordHit(method string, tracked bool) {
	if !tracked {
		return
	}
	c.store.Metrics().RecordHit()
	c.sink.OnHit(method)
}

func (c *Cache[V]) recordMiss(method string, tracked bool) {
	if !tracked {
		return
	}
	c.store.Metrics().RecordMiss()
	c.sink.OnMiss(method)
}

// recordWaiter accounts a single-flight waiter: a hit by default (the
// work was shared), a deferred miss when CountWaiterMisses is set.
func (c *Cache[V]) recordWaiter(method string, tracked bool) {
	if c.opts.CountWaiterMisses {
		c.recordMiss(method, tracked)
		return
	}
	c.recordHit(method, tracked)
}
