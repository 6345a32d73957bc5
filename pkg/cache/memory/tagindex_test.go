package memory

import (
	"sort"
	"testing"
	"time"
)

func TestTagIndex_AddLookupRemove(t *testing.T) {
	idx := NewTagIndex(0, nil)

	idx.Add("a", []string{"t1", "shared"})
	idx.Add("b", []string{"t2", "shared"})

	got := idx.Lookup("shared")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Lookup(shared) = %v, want [a b]", got)
	}

	if got := idx.Lookup("t1"); len(got) != 1 || got[0] != "a" {
		t.Errorf("Lookup(t1) = %v, want [a]", got)
	}
	if got := idx.Lookup("missing"); len(got) != 0 {
		t.Errorf("Lookup(missing) = %v, want empty", got)
	}

	idx.Remove("a", []string{"t1", "shared"})
	if got := idx.Lookup("shared"); len(got) != 1 || got[0] != "b" {
		t.Errorf("Lookup(shared) after remove = %v, want [b]", got)
	}
}

func TestTagIndex_MappingsCountNetNewOnly(t *testing.T) {
	idx := NewTagIndex(0, nil)

	idx.Add("a", []string{"t1", "t2"})
	if idx.Mappings() != 2 {
		t.Fatalf("Mappings = %d, want 2", idx.Mappings())
	}

	// Re-adding the same pairs must not inflate the counter.
	idx.Add("a", []string{"t1", "t2"})
	if idx.Mappings() != 2 {
		t.Errorf("Mappings after duplicate add = %d, want 2", idx.Mappings())
	}

	idx.Remove("a", []string{"t1"})
	if idx.Mappings() != 1 {
		t.Errorf("Mappings after remove = %d, want 1", idx.Mappings())
	}

	// Removing a pair that never existed must not go negative.
	idx.Remove("b", []string{"t1", "t2"})
	if idx.Mappings() != 1 {
		t.Errorf("Mappings after bogus remove = %d, want 1", idx.Mappings())
	}
}

func TestTagIndex_EmptyTagSetDropped(t *testing.T) {
	idx := NewTagIndex(0, nil)

	idx.Add("a", []string{"t1"})
	idx.Remove("a", []string{"t1"})

	if names := idx.Names(); len(names) != 0 {
		t.Errorf("Names after draining = %v, want empty", names)
	}
}

func TestTagIndex_Names(t *testing.T) {
	idx := NewTagIndex(0, nil)

	idx.Add("a", []string{"user:1", "order:1"})
	idx.Add("b", []string{"user:2"})

	names := idx.Names()
	sort.Strings(names)
	want := []string{"order:1", "user:1", "user:2"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names = %v, want %v", names, want)
		}
	}
}

func TestTagIndex_SweepDropsStaleReferences(t *testing.T) {
	live := map[string]bool{"live": true}
	idx := NewTagIndex(4, nil)
	idx.present = func(fp string) bool { return live[fp] }

	idx.Add("live", []string{"t1"})
	idx.Add("stale1", []string{"t1"})
	idx.Add("stale2", []string{"t2"})

	// Crossing the cap starts the background sweep.
	idx.Add("stale3", []string{"t2", "t3"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if idx.Mappings() == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := idx.Mappings(); got != 1 {
		t.Fatalf("Mappings after sweep = %d, want 1", got)
	}
	if got := idx.Lookup("t1"); len(got) != 1 || got[0] != "live" {
		t.Errorf("Lookup(t1) after sweep = %v, want [live]", got)
	}
	if got := idx.Names(); len(got) != 1 {
		t.Errorf("Names after sweep = %v, want [t1]", got)
	}
}

func TestTagIndex_ClearResets(t *testing.T) {
	idx := NewTagIndex(0, nil)
	idx.Add("a", []string{"t1", "t2"})

	idx.Clear()

	if idx.Mappings() != 0 {
		t.Errorf("Mappings after Clear = %d, want 0", idx.Mappings())
	}
	if got := idx.Lookup("t1"); len(got) != 0 {
		t.Errorf("Lookup after Clear = %v, want empty", got)
	}
}
