package velox

import (
	"sync/atomic"
	"time"

	"github.com/veloxcache/velox/pkg/cache/memory"
)

// LockSpec configures the distributed lock a policy declares.
type LockSpec struct {
	// Timeout bounds lock acquisition. Acquisition failures surface as
	// ErrTimeout from GetOrCreate.
	Timeout time.Duration

	// MaxConcurrency is the number of permits per fingerprint. Values
	// below 1 are normalized to 1.
	MaxConcurrency int64
}

// RuntimePolicy is an externally supplied, immutable policy bundle,
// typically a singleton per call site. It is resolved once per instance
// to an internal entry policy; the resolved form is memoized on the
// policy itself so shared policies never allocate on the miss path.
//
// Construct with NewPolicy and configure via PolicyOption values. A nil
// *RuntimePolicy is accepted everywhere and means "cache defaults only".
type RuntimePolicy struct {
	duration     time.Duration
	tags         []string
	sliding      time.Duration
	refreshAhead time.Duration
	stampede     memory.StampedeMode
	beta         float64
	lock         *LockSpec

	resolved atomic.Pointer[memory.EntryPolicy]
}

// PolicyOption configures a RuntimePolicy under construction.
type PolicyOption func(*RuntimePolicy)

// NewPolicy creates an immutable runtime policy.
func NewPolicy(opts ...PolicyOption) *RuntimePolicy {
	p := &RuntimePolicy{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithDuration sets the absolute entry lifetime.
func WithDuration(d time.Duration) PolicyOption {
	return func(p *RuntimePolicy) { p.duration = d }
}

// WithTags sets the tags entries created under this policy declare.
func WithTags(tags ...string) PolicyOption {
	return func(p *RuntimePolicy) {
		if len(tags) > 0 {
			p.tags = append([]string(nil), tags...)
		}
	}
}

// WithSlidingExpiration extends the absolute expiration to now+s on every
// read hit.
func WithSlidingExpiration(s time.Duration) PolicyOption {
	return func(p *RuntimePolicy) { p.sliding = s }
}

// WithRefreshAhead forces a refresh once an entry is within window of its
// absolute expiration.
func WithRefreshAhead(window time.Duration) PolicyOption {
	return func(p *RuntimePolicy) {
		p.refreshAhead = window
		p.stampede = memory.StampedeRefreshAhead
	}
}

// WithProbabilisticStampede enables beta-exponential early refresh.
// beta <= 0 is treated as 1.
func WithProbabilisticStampede(beta float64) PolicyOption {
	return func(p *RuntimePolicy) {
		p.stampede = memory.StampedeProbabilistic
		p.beta = beta
	}
}

// WithDistributedLock makes miss resolution acquire a per-fingerprint
// lock with the given spec before running the factory.
func WithDistributedLock(timeout time.Duration, maxConcurrency int64) PolicyOption {
	return func(p *RuntimePolicy) {
		p.stampede = memory.StampedeDistributedLock
		p.lock = &LockSpec{Timeout: timeout, MaxConcurrency: maxConcurrency}
	}
}

// Tags returns the policy's tag list. Callers must not mutate it.
func (p *RuntimePolicy) Tags() []string {
	if p == nil {
		return nil
	}
	return p.tags
}
