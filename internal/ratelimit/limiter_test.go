package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock drives the limiter without real sleeping.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	nap []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nap = append(c.nap, d)
	c.t = c.t.Add(d)
	return ctx.Err()
}

func newTestLimiter(maxCalls int, window time.Duration) (*Limiter, *fakeClock) {
	clock := newFakeClock()
	l := NewLimiter(maxCalls, window)
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

func TestAcquireWithinLimitDoesNotDelay(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	if len(clock.nap) != 0 {
		t.Errorf("slept %v, want no sleeps for calls within the limit", clock.nap)
	}
	if got := l.Pending(); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}
}

func TestAcquireOverLimitDelaysUntilWindowExit(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}

	// Third call must wait out the full window since both slots were
	// taken at the same instant.
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if len(clock.nap) == 0 {
		t.Fatal("third Acquire() did not sleep")
	}
	if clock.nap[0] != time.Minute {
		t.Errorf("slept %v, want %v", clock.nap[0], time.Minute)
	}
}

func TestAcquireExpiredCallsFreeSlots(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Move past the window; the slot should be free without sleeping.
	clock.mu.Lock()
	clock.t = clock.t.Add(61 * time.Second)
	clock.mu.Unlock()

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clock.nap) != 0 {
		t.Errorf("slept %v, want no sleep after window expiry", clock.nap)
	}
}

func TestAcquireHonorsContextCancellation(t *testing.T) {
	l := NewLimiter(1, time.Hour)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Acquire(ctx); err != context.Canceled {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestAcquireConcurrentCallers(t *testing.T) {
	l, _ := newTestLimiter(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := l.Pending(); got != 50 {
		t.Errorf("Pending() = %d, want 50", got)
	}
}
