package velox

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// flights bundles the two single-flight gates. Clear swaps the whole
// bundle, which drops every in-flight mapping at once.
type flights[V any] struct {
	fast  singleflight.Group
	heavy sync.Map // fingerprint -> *gate[V]
}

// doFast coordinates a miss through the lightweight gate. fn runs at most
// once per in-flight fingerprint; the return reports whether this caller
// was the coordinator (fn executed on its behalf).
func (f *flights[V]) doFast(fingerprint string, fn func() (V, error)) (V, bool, error) {
	executed := false
	v, err, _ := f.fast.Do(fingerprint, func() (interface{}, error) {
		executed = true
		return fn()
	})
	// Drop the cell so a later miss elects a fresh coordinator.
	f.fast.Forget(fingerprint)

	var zero V
	if err != nil {
		return zero, executed, err
	}
	return v.(V), executed, nil
}

// gate is a one-shot completion cell for the heavyweight path.
type gate[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// doHeavy coordinates a miss through the heavyweight gate. The first
// arriver becomes the coordinator and runs fn with its own context; later
// arrivals wait for the cell to complete. A waiter's cancellation aborts
// only that waiter. If the coordinator's context is canceled the factory
// is canceled with it, the failure propagates to all current waiters, and
// the gate is dropped so subsequent arrivals elect a new coordinator.
func (f *flights[V]) doHeavy(ctx context.Context, fingerprint string, fn func(context.Context) (V, error)) (V, bool, error) {
	var zero V

	g := &gate[V]{done: make(chan struct{})}
	actual, loaded := f.heavy.LoadOrStore(fingerprint, g)
	if loaded {
		// Waiter: observe the coordinator's outcome or bail on our own
		// cancellation without disturbing the coordinator.
		w := actual.(*gate[V])
		select {
		case <-w.done:
			return w.val, false, w.err
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	}

	// Coordinator.
	g.val, g.err = fn(ctx)
	f.heavy.Delete(fingerprint)
	close(g.done)
	return g.val, true, g.err
}
