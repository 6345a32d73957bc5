package memory

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// EvictionPolicy determines which entries are removed when the cache
// exceeds its capacity.
type EvictionPolicy int

const (
	// EvictionLRU evicts the least recently accessed entries from a
	// sampled subset.
	EvictionLRU EvictionPolicy = iota

	// EvictionLFU evicts the least frequently accessed entries from a
	// sampled subset, trading precision for speed.
	EvictionLFU

	// EvictionLFUPrecise orders the entire cache by (access count, last
	// access) and evicts the lowest. O(N log N).
	EvictionLFUPrecise

	// EvictionFIFO evicts the oldest entries by creation time from a
	// sampled subset.
	EvictionFIFO

	// EvictionTTL evicts the entries closest to expiration from a
	// sampled subset.
	EvictionTTL

	// EvictionTTLPrecise orders the entire cache by (expiration,
	// creation) and evicts the earliest. O(N log N).
	EvictionTTLPrecise
)

// String returns the string representation of the eviction policy.
func (p EvictionPolicy) String() string {
	switch p {
	case EvictionLRU:
		return "LRU"
	case EvictionLFU:
		return "LFU"
	case EvictionLFUPrecise:
		return "LFU-precise"
	case EvictionFIFO:
		return "FIFO"
	case EvictionTTL:
		return "TTL"
	case EvictionTTLPrecise:
		return "TTL-precise"
	default:
		return "Unknown"
	}
}

// ParseEvictionPolicy converts a configuration string to a policy.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch strings.ToLower(s) {
	case "lru":
		return EvictionLRU, nil
	case "lfu":
		return EvictionLFU, nil
	case "lfu-precise":
		return EvictionLFUPrecise, nil
	case "fifo":
		return EvictionFIFO, nil
	case "ttl":
		return EvictionTTL, nil
	case "ttl-precise":
		return EvictionTTLPrecise, nil
	default:
		return 0, fmt.Errorf("unknown eviction policy %q", s)
	}
}

// NeedsRecency reports whether the policy orders by access recency or
// frequency, requiring the read path to update access metadata.
func (p EvictionPolicy) NeedsRecency() bool {
	switch p {
	case EvictionLRU, EvictionLFU, EvictionLFUPrecise:
		return true
	default:
		return false
	}
}

func (p EvictionPolicy) precise() bool {
	return p == EvictionLFUPrecise || p == EvictionTTLPrecise
}

// evictionGuardWait bounds how long an insert waits for the eviction
// permit before skipping eviction entirely.
const evictionGuardWait = 100 * time.Millisecond

// evictionFullScan is the table size at or below which a pass ranks the
// whole cache instead of a reservoir sample.
const evictionFullScan = 1024

// Evictor removes entries when the table reaches capacity. Eviction is
// single-shot per pass: no per-read bookkeeping structures are maintained.
// A one-permit semaphore with a short bounded wait guards the routine so
// the write path never blocks on a concurrent pass.
type Evictor[V any] struct {
	store     *Store[V]
	policy    EvictionPolicy
	maxItems  int
	samplePct float64
	guard     *semaphore.Weighted
}

// NewEvictor creates an eviction engine over store. maxItems <= 0
// disables eviction. samplePct outside (0, 1] defaults to 0.1.
func NewEvictor[V any](store *Store[V], policy EvictionPolicy, maxItems int, samplePct float64) *Evictor[V] {
	if samplePct <= 0 || samplePct > 1 {
		samplePct = 0.1
	}
	return &Evictor[V]{
		store:     store,
		policy:    policy,
		maxItems:  maxItems,
		samplePct: samplePct,
		guard:     semaphore.NewWeighted(1),
	}
}

// candidate is the sampled eviction view of an entry.
type candidate struct {
	fingerprint string
	created     int64
	lastAccess  int64
	accessCount int64
	expires     int64 // math.MaxInt64 when the entry never expires
}

// MaybeEvict runs one eviction pass if the table is at or above capacity.
// Returns the number of entries evicted; zero when under capacity or when
// the guard could not be acquired within its bounded wait.
func (ev *Evictor[V]) MaybeEvict(ctx context.Context) int {
	if ev.maxItems <= 0 {
		return 0
	}
	current := ev.store.Len()
	if current < ev.maxItems {
		return 0
	}

	guardCtx, cancel := context.WithTimeout(ctx, evictionGuardWait)
	defer cancel()
	if err := ev.guard.Acquire(guardCtx, 1); err != nil {
		// Another pass is running; skip eviction for this insert.
		return 0
	}
	defer ev.guard.Release(1)

	current = ev.store.Len()
	target := current - int(math.Floor(float64(ev.maxItems)*0.9))
	if target < 1 {
		target = 1
	}
	if limit := ev.maxItems / 5; limit > 0 && target > limit {
		target = limit
	}

	victims := ev.selectVictims(current, target)
	evicted := 0
	for _, fp := range victims {
		if ev.store.RemoveEvicted(fp) {
			evicted++
		}
	}
	return evicted
}

// selectVictims orders candidates under the configured policy and returns
// the fingerprints of the target lowest-ranked entries.
func (ev *Evictor[V]) selectVictims(current, target int) []string {
	var cands []candidate
	if ev.policy.precise() || current <= evictionFullScan {
		cands = ev.collectAll(current)
	} else {
		n := target
		if sampled := int(math.Ceil(float64(current) * ev.samplePct)); sampled > n {
			n = sampled
		}
		if n >= current {
			cands = ev.collectAll(current)
		} else {
			cands = ev.sample(n)
		}
	}

	sort.Slice(cands, ev.less(cands))

	if target > len(cands) {
		target = len(cands)
	}
	victims := make([]string, 0, target)
	for _, c := range cands[:target] {
		victims = append(victims, c.fingerprint)
	}
	return victims
}

func (ev *Evictor[V]) less(cands []candidate) func(i, j int) bool {
	switch ev.policy {
	case EvictionFIFO:
		return func(i, j int) bool { return cands[i].created < cands[j].created }
	case EvictionLFU:
		return func(i, j int) bool { return cands[i].accessCount < cands[j].accessCount }
	case EvictionLFUPrecise:
		return func(i, j int) bool {
			if cands[i].accessCount != cands[j].accessCount {
				return cands[i].accessCount < cands[j].accessCount
			}
			return cands[i].lastAccess < cands[j].lastAccess
		}
	case EvictionTTL:
		return func(i, j int) bool { return cands[i].expires < cands[j].expires }
	case EvictionTTLPrecise:
		return func(i, j int) bool {
			if cands[i].expires != cands[j].expires {
				return cands[i].expires < cands[j].expires
			}
			return cands[i].created < cands[j].created
		}
	default: // EvictionLRU
		return func(i, j int) bool { return cands[i].lastAccess < cands[j].lastAccess }
	}
}

func (ev *Evictor[V]) collectAll(hint int) []candidate {
	cands := make([]candidate, 0, hint)
	ev.store.Range(func(fp string, e *Entry[V]) bool {
		cands = append(cands, snapshotCandidate(fp, e))
		return true
	})
	return cands
}

// sample draws n entries via reservoir sampling over a single pass of the
// table.
func (ev *Evictor[V]) sample(n int) []candidate {
	cands := make([]candidate, 0, n)
	seen := 0
	ev.store.Range(func(fp string, e *Entry[V]) bool {
		if len(cands) < n {
			cands = append(cands, snapshotCandidate(fp, e))
		} else if j := rand.IntN(seen + 1); j < n {
			cands[j] = snapshotCandidate(fp, e)
		}
		seen++
		return true
	})
	return cands
}

func snapshotCandidate[V any](fp string, e *Entry[V]) candidate {
	expires := e.expiresAt.Load()
	if expires == 0 {
		expires = math.MaxInt64
	}
	return candidate{
		fingerprint: fp,
		created:     e.createdAt,
		lastAccess:  e.lastAccess.Load(),
		accessCount: e.accessCount.Load(),
		expires:     expires,
	}
}
