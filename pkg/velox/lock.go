package velox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Locker is the distributed-lock seam. The cache ships an in-process
// semaphore-based implementation; deployments with multiple processes
// supply a backend such as the Redis adapter in pkg/lock/redis.
//
// Acquire blocks until a permit for fingerprint is available or timeout
// elapses, returning a release function on success and an error wrapping
// ErrTimeout on failure. Backends that cannot express more than one
// permit may ignore maxConcurrency and behave as a mutex.
type Locker interface {
	Acquire(ctx context.Context, fingerprint string, timeout time.Duration, maxConcurrency int64) (release func(), err error)

	// Forget drops any per-fingerprint state. Called when the entry is
	// removed; a stale record is a minor leak, not a correctness issue.
	Forget(fingerprint string)
}

// SemaphoreLocker is the in-process Locker: one weighted semaphore per
// fingerprint, created on demand and dropped on Forget.
type SemaphoreLocker struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewSemaphoreLocker creates an empty in-process locker.
func NewSemaphoreLocker() *SemaphoreLocker {
	return &SemaphoreLocker{sems: make(map[string]*semaphore.Weighted)}
}

// Acquire implements Locker.
func (l *SemaphoreLocker) Acquire(ctx context.Context, fingerprint string, timeout time.Duration, maxConcurrency int64) (func(), error) {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	l.mu.Lock()
	sem, ok := l.sems[fingerprint]
	if !ok {
		sem = semaphore.NewWeighted(maxConcurrency)
		l.sems[fingerprint] = sem
	}
	l.mu.Unlock()

	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("lock %q: %w", fingerprint, ErrTimeout)
	}
	return func() { sem.Release(1) }, nil
}

// Forget implements Locker.
func (l *SemaphoreLocker) Forget(fingerprint string) {
	l.mu.Lock()
	delete(l.sems, fingerprint)
	l.mu.Unlock()
}
