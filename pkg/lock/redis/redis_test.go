package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/veloxcache/velox/pkg/velox"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without URL must fail")
	}
	if _, err := New(Config{URL: "not-a-url"}); err == nil {
		t.Error("New with malformed URL must fail")
	}
}

func TestLocker_AcquireAndRelease(t *testing.T) {
	l, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "fp1", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if !mr.Exists(DefaultPrefix + "fp1") {
		t.Error("lock key missing in redis while held")
	}

	release()

	deadline := time.Now().Add(2 * time.Second)
	for mr.Exists(DefaultPrefix+"fp1") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mr.Exists(DefaultPrefix + "fp1") {
		t.Error("lock key still present after release")
	}
}

func TestLocker_ContendedAcquireTimesOut(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "fp", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	startedAt := time.Now()
	_, err = l.Acquire(ctx, "fp", 50*time.Millisecond, 1)
	if !velox.IsTimeout(err) {
		t.Fatalf("contended Acquire error = %v, want velox.ErrTimeout", err)
	}
	if elapsed := time.Since(startedAt); elapsed > time.Second {
		t.Errorf("timeout took %v, want about 50ms", elapsed)
	}
}

func TestLocker_ReleasedLockIsReacquirable(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "fp", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()

	release2, err := l.Acquire(ctx, "fp", time.Second, 1)
	if err != nil {
		t.Fatalf("re-Acquire after release failed: %v", err)
	}
	release2()
}

func TestLocker_WaiterObtainsLockAfterRelease(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "fp", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		r, err := l.Acquire(ctx, "fp", 2*time.Second, 1)
		if err == nil {
			r()
		}
		acquired <- err
	}()

	time.Sleep(50 * time.Millisecond)
	release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("waiter failed to acquire after release: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("waiter never obtained the lock")
	}
}

func TestLocker_ExpiredHolderLockIsTakenOver(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := New(Config{URL: "redis://" + mr.Addr(), LockTTL: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	ctx := context.Background()

	// Simulate a crashed holder: acquire and never release.
	if _, err := l.Acquire(ctx, "fp", time.Second, 1); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// miniredis needs explicit time advancement for key expiry.
	mr.FastForward(100 * time.Millisecond)

	release, err := l.Acquire(ctx, "fp", time.Second, 1)
	if err != nil {
		t.Fatalf("takeover after TTL expiry failed: %v", err)
	}
	release()
}
