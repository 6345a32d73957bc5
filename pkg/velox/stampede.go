package velox

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/veloxcache/velox/pkg/cache/memory"
)

// shouldForceRefresh decides whether a read of an existing, non-expired
// entry is treated as a miss to refresh the value ahead of expiration.
//
// Refresh-ahead compares the configured window against the current
// absolute expiration, including any slides already applied. The
// probabilistic mode draws u ~ U(0,1) and refreshes iff u > exp(-beta *
// min(1, age/duration)): rare for young entries, near-certain close to
// expiration. Distributed-lock policies never force refresh on read.
func shouldForceRefresh[V any](e *memory.Entry[V], now time.Time, defaultDuration time.Duration) bool {
	p := e.Policy()

	if p.RefreshAhead > 0 {
		exp := e.ExpiresAt()
		if !exp.IsZero() && exp.Sub(now) <= p.RefreshAhead {
			return true
		}
	}

	if p.Stampede == memory.StampedeProbabilistic {
		d := p.Duration
		if d <= 0 {
			d = defaultDuration
		}
		if d <= 0 {
			return false
		}
		ratio := float64(now.Sub(e.CreatedAt())) / float64(d)
		if ratio > 1 {
			ratio = 1
		}
		if ratio < 0 {
			ratio = 0
		}
		beta := p.Beta
		if beta <= 0 {
			beta = 1
		}
		return rand.Float64() > math.Exp(-beta*ratio)
	}

	return false
}
