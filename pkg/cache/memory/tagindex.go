package memory

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultMaxTagMappings is the soft cap on (tag, fingerprint) pairs before
// a background stale sweep is initiated.
const DefaultMaxTagMappings = 100_000

// TagIndex is the reverse index from tag name to the set of fingerprints
// declaring that tag. The index holds only fingerprint references; the
// entry table owns the entries. Under the relaxed concurrency model a
// fingerprint may transiently remain indexed after its entry is removed;
// the bounded background sweep restores the invariant.
type TagIndex struct {
	mu   sync.RWMutex
	tags map[string]map[string]struct{}

	mappings    atomic.Int64
	maxMappings int64
	sweeping    atomic.Bool

	// present reports whether a fingerprint is still in the entry table.
	// Wired by the owning Store.
	present func(fingerprint string) bool

	logger *zap.Logger
}

// NewTagIndex creates an empty tag index. maxMappings <= 0 selects
// DefaultMaxTagMappings.
func NewTagIndex(maxMappings int64, logger *zap.Logger) *TagIndex {
	if maxMappings <= 0 {
		maxMappings = DefaultMaxTagMappings
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagIndex{
		tags:        make(map[string]map[string]struct{}),
		maxMappings: maxMappings,
		logger:      logger,
	}
}

// Add indexes fingerprint under each tag. Only net-new (fingerprint, tag)
// pairs count toward the mapping total. Crossing the soft cap starts at
// most one background stale sweep.
func (t *TagIndex) Add(fingerprint string, tags []string) {
	if len(tags) == 0 {
		return
	}

	added := int64(0)
	t.mu.Lock()
	for _, tag := range tags {
		set, ok := t.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			t.tags[tag] = set
		}
		if _, ok := set[fingerprint]; !ok {
			set[fingerprint] = struct{}{}
			added++
		}
	}
	t.mu.Unlock()

	if added == 0 {
		return
	}
	if t.mappings.Add(added) >= t.maxMappings {
		t.startSweep()
	}
}

// Remove de-indexes fingerprint from each tag, dropping tag sets that
// become empty.
func (t *TagIndex) Remove(fingerprint string, tags []string) {
	if len(tags) == 0 {
		return
	}

	removed := int64(0)
	t.mu.Lock()
	for _, tag := range tags {
		set, ok := t.tags[tag]
		if !ok {
			continue
		}
		if _, ok := set[fingerprint]; ok {
			delete(set, fingerprint)
			removed++
			if len(set) == 0 {
				delete(t.tags, tag)
			}
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		t.mappings.Add(-removed)
	}
}

// Lookup returns the union of fingerprint sets for the given tags.
func (t *TagIndex) Lookup(tags ...string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, tag := range tags {
		for fp := range t.tags[tag] {
			seen[fp] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for fp := range seen {
		out = append(out, fp)
	}
	return out
}

// Names returns the names of all currently indexed tags.
func (t *TagIndex) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.tags))
	for tag := range t.tags {
		out = append(out, tag)
	}
	return out
}

// Mappings returns the current (tag, fingerprint) pair count. The value
// drifts from the exact count only transiently while inserts and removals
// are in flight.
func (t *TagIndex) Mappings() int64 {
	return t.mappings.Load()
}

// Clear drops all tag sets and zeroes the mapping counter.
func (t *TagIndex) Clear() {
	t.mu.Lock()
	t.tags = make(map[string]map[string]struct{})
	t.mu.Unlock()
	t.mappings.Store(0)
}

// startSweep launches at most one concurrent stale sweep.
func (t *TagIndex) startSweep() {
	if t.present == nil {
		return
	}
	if !t.sweeping.CompareAndSwap(false, true) {
		return
	}
	go t.sweep()
}

// sweep drops (tag, fingerprint) pairs whose fingerprint is no longer in
// the entry table and purges tag sets that become empty.
func (t *TagIndex) sweep() {
	defer t.sweeping.Store(false)

	dropped := int64(0)
	for _, tag := range t.Names() {
		t.mu.RLock()
		set, ok := t.tags[tag]
		var stale []string
		if ok {
			for fp := range set {
				if !t.present(fp) {
					stale = append(stale, fp)
				}
			}
		}
		t.mu.RUnlock()

		if len(stale) == 0 {
			continue
		}

		t.mu.Lock()
		set, ok = t.tags[tag]
		if ok {
			for _, fp := range stale {
				if _, exists := set[fp]; exists && !t.present(fp) {
					delete(set, fp)
					dropped++
				}
			}
			if len(set) == 0 {
				delete(t.tags, tag)
			}
		}
		t.mu.Unlock()
	}

	if dropped > 0 {
		t.mappings.Add(-dropped)
	}
	t.logger.Debug("tag index sweep completed",
		zap.Int64("dropped", dropped),
		zap.Int64("mappings", t.mappings.Load()),
	)
}
