package memory

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepBatch is the number of entries examined per sweep pass when
// the table is larger than the batch.
const DefaultSweepBatch = 1000

// catchUpInterval is the shortened cadence used when a pass finds that
// more than half of its sample had expired.
const catchUpInterval = 10 * time.Second

// Sweeper periodically removes expired entries. The sweeper is advisory:
// the read path also removes expired entries lazily. When a pass observes
// heavy expiration it reschedules itself at a shorter interval to catch
// up.
type Sweeper[V any] struct {
	store    *Store[V]
	interval time.Duration
	batch    int
	logger   *zap.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper over store. batch <= 0 selects
// DefaultSweepBatch.
func NewSweeper[V any](store *Store[V], interval time.Duration, batch int, logger *zap.Logger) *Sweeper[V] {
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper[V]{
		store:    store,
		interval: interval,
		batch:    batch,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background sweep loop. No-op when the interval is
// not positive.
func (s *Sweeper[V]) Start() {
	if s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go s.loop()
}

// Stop terminates the sweep loop and waits for it to exit. Safe to call
// once per sweeper.
func (s *Sweeper[V]) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper[V]) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			next := s.interval
			if s.sweep(time.Now()) {
				next = catchUpInterval
			}
			timer.Reset(next)
		case <-s.stopCh:
			return
		}
	}
}

// sweep runs one pass and reports whether the next run should use the
// catch-up interval.
func (s *Sweeper[V]) sweep(now time.Time) bool {
	size := s.store.Len()

	var expired []string
	scanned := 0
	if size <= s.batch {
		// Small table: scan everything.
		s.store.Range(func(fp string, e *Entry[V]) bool {
			scanned++
			if e.Expired(now) {
				expired = append(expired, fp)
			}
			return true
		})
	} else {
		// Large table: examine a bounded prefix. Map iteration order is
		// randomized, which gives the pass a fresh sample each run.
		s.store.Range(func(fp string, e *Entry[V]) bool {
			scanned++
			if e.Expired(now) {
				expired = append(expired, fp)
			}
			return scanned < s.batch
		})
	}

	removed := 0
	for _, fp := range expired {
		if s.store.RemoveIfExpired(fp, now) {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("expiry sweep completed",
			zap.Int("scanned", scanned),
			zap.Int("removed", removed),
		)
	}

	return size > s.batch && scanned > 0 && removed*2 > scanned
}
