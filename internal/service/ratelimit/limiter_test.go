package ratelimit

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically: sleeping advances time.
type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func newFakeLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	c := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = func() time.Time { return c.now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		c.now = c.now.Add(d)
		c.slept += d
		return nil
	}
	return l, c
}

func TestWaitAdmitsBurstWithoutBlocking(t *testing.T) {
	l, c := newFakeLimiter(3, time.Second)
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	if c.slept != 0 {
		t.Fatalf("slept %v during burst, want 0", c.slept)
	}
}

func TestWaitBlocksExactResidual(t *testing.T) {
	l, c := newFakeLimiter(3, time.Second)
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d: %v", i, err)
		}
	}
	// Fourth request must wait until the oldest stamp leaves the window.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if c.slept != time.Second {
		t.Fatalf("slept %v, want exactly 1s", c.slept)
	}
}

func TestWaitSlidingWindow(t *testing.T) {
	l, c := newFakeLimiter(2, time.Second)

	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.now = c.now.Add(600 * time.Millisecond)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Third request arrives 600ms after the first; it must wait the 400ms
	// residual, not a full second.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.slept != 400*time.Millisecond {
		t.Fatalf("slept %v, want 400ms", c.slept)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	l, _ := newFakeLimiter(1, time.Second)
	l.sleep = sleepCtx

	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewClampsBadInput(t *testing.T) {
	l := New(0, 0)
	if l.limit != 1 || l.window != time.Second {
		t.Fatalf("limit/window = %d/%v, want 1/1s", l.limit, l.window)
	}
}

func TestKeyedLimiterBucket(t *testing.T) {
	kl := NewKeyed()
	for i := 0; i < 2; i++ {
		if !kl.Allow("10.0.0.1", 2, 0.0001) {
			t.Fatalf("Allow %d = false, want true", i)
		}
	}
	if kl.Allow("10.0.0.1", 2, 0.0001) {
		t.Fatal("bucket exhausted but Allow returned true")
	}
	// Other keys have their own bucket.
	if !kl.Allow("10.0.0.2", 2, 0.0001) {
		t.Fatal("independent key was throttled")
	}
}
