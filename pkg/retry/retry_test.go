package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}
	attempts := 0
	err := Do(context.Background(), p, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2}
	want := errors.New("always")
	attempts := 0
	err := Do(context.Background(), p, func(ctx context.Context) error {
		attempts++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestDoIfStopsOnNonRetryable(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Multiplier: 2}
	fatal := errors.New("fatal")
	attempts := 0
	err := DoIf(context.Background(), p, func(err error) bool { return !errors.Is(err, fatal) },
		func(ctx context.Context) error {
			attempts++
			return fatal
		})
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want %v", err, fatal)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (non-retryable)", attempts)
	}
}

func TestDoRespectsContext(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, Multiplier: 2}
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, p, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestDelaySchedule(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, Multiplier: 2}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 400 * time.Millisecond},
	}
	for _, c := range cases {
		if got := p.Delay(c.attempt); got != c.want {
			t.Errorf("Delay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestZeroPolicyUsesDefaults(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{BaseDelay: time.Microsecond}, func(ctx context.Context) error {
		attempts++
		return errors.New("x")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != DefaultPolicy.MaxAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, DefaultPolicy.MaxAttempts)
	}
}
