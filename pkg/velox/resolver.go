package velox

import "github.com/veloxcache/velox/pkg/cache/memory"

// resolve maps a runtime policy to its internal entry policy, memoized on
// the policy instance. Resolution is a pure normalization: duration
// defaulting and clamping against cache options happen at insert time, so
// one resolved form is valid across every cache that shares the policy.
// The memo lives on the RuntimePolicy itself and is released with it.
func resolve(p *RuntimePolicy) *memory.EntryPolicy {
	if p == nil {
		return memory.EmptyPolicy
	}
	if ep := p.resolved.Load(); ep != nil {
		return ep
	}

	ep := &memory.EntryPolicy{
		Duration:     p.duration,
		Sliding:      p.sliding,
		RefreshAhead: p.refreshAhead,
		Stampede:     p.stampede,
		Beta:         p.beta,
	}
	if ep.Stampede == memory.StampedeProbabilistic && ep.Beta <= 0 {
		ep.Beta = 1
	}
	if p.lock != nil {
		ep.LockTimeout = p.lock.Timeout
		ep.LockConcurrency = p.lock.MaxConcurrency
		if ep.LockConcurrency < 1 {
			ep.LockConcurrency = 1
		}
	}

	// First resolver wins; losers adopt the published form.
	if p.resolved.CompareAndSwap(nil, ep) {
		return ep
	}
	return p.resolved.Load()
}
