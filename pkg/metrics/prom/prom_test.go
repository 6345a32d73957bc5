package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSink_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := New(reg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.OnHit("Users.Get")
	s.OnHit("Users.Get")
	s.OnMiss("Users.Get")
	s.OnEviction("Users.Get", "capacity")
	s.OnError("Users.Get", "backend down")

	if got := testutil.ToFloat64(s.hits.WithLabelValues("Users.Get")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.misses.WithLabelValues("Users.Get")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.evictions.WithLabelValues("Users.Get", "capacity")); got != 1 {
		t.Errorf("evictions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.errors.WithLabelValues("Users.Get")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New failed: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("second New on the same registry must fail")
	}
}
