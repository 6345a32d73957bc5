package velox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSemaphoreLocker_AcquireRelease(t *testing.T) {
	l := NewSemaphoreLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()

	// Released permit is immediately reusable.
	release, err = l.Acquire(ctx, "k", time.Second, 1)
	if err != nil {
		t.Fatalf("re-Acquire failed: %v", err)
	}
	release()
}

func TestSemaphoreLocker_TimeoutWrapsErrTimeout(t *testing.T) {
	l := NewSemaphoreLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	startedAt := time.Now()
	_, err = l.Acquire(ctx, "k", 20*time.Millisecond, 1)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("contended Acquire error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(startedAt); elapsed > 500*time.Millisecond {
		t.Errorf("timeout took %v, want about 20ms", elapsed)
	}
}

func TestSemaphoreLocker_MaxConcurrencyPermits(t *testing.T) {
	l := NewSemaphoreLocker()
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "k", time.Second, 2)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer r1()

	r2, err := l.Acquire(ctx, "k", time.Second, 2)
	if err != nil {
		t.Fatalf("second Acquire within permit count failed: %v", err)
	}

	if _, err := l.Acquire(ctx, "k", 20*time.Millisecond, 2); !errors.Is(err, ErrTimeout) {
		t.Errorf("third Acquire error = %v, want ErrTimeout", err)
	}

	// Releasing a permit unblocks the next acquirer.
	r2()
	r3, err := l.Acquire(ctx, "k", time.Second, 2)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	r3()
}

func TestSemaphoreLocker_FingerprintsIndependent(t *testing.T) {
	l := NewSemaphoreLocker()
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "a", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire(a) failed: %v", err)
	}
	defer r1()

	r2, err := l.Acquire(ctx, "b", 50*time.Millisecond, 1)
	if err != nil {
		t.Fatalf("Acquire(b) should not contend with a: %v", err)
	}
	r2()
}

func TestSemaphoreLocker_CallerCancellation(t *testing.T) {
	l := NewSemaphoreLocker()

	release, err := l.Acquire(context.Background(), "k", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Acquire(ctx, "k", time.Second, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled Acquire error = %v, want context.Canceled", err)
	}
}

func TestSemaphoreLocker_Forget(t *testing.T) {
	l := NewSemaphoreLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Second, 1)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()

	l.Forget("k")
	if len(l.sems) != 0 {
		t.Errorf("semaphore map holds %d entries after Forget, want 0", len(l.sems))
	}
}
