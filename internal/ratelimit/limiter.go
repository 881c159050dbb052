// Package ratelimit provides a sliding-window call limiter shared by
// provider clients.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most maxCalls calls per window. Acquire never drops a
// caller, it only delays until a slot frees.
type Limiter struct {
	maxCalls int
	window   time.Duration

	mu    sync.Mutex
	calls []time.Time

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter admitting maxCalls calls per window.
func NewLimiter(maxCalls int, window time.Duration) *Limiter {
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire blocks until a call slot is available or ctx is cancelled.
// The wait is a loop rather than self-recursion so contention cannot
// grow the stack.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()

		// Drop timestamps that have left the window.
		kept := l.calls[:0]
		for _, c := range l.calls {
			if now.Sub(c) < l.window {
				kept = append(kept, c)
			}
		}
		l.calls = kept

		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		// At capacity: wait until the oldest call exits the window,
		// then re-check. Another caller may win the freed slot.
		wait := l.window - now.Sub(l.calls[0])
		l.mu.Unlock()

		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
}

// Pending returns the number of calls currently inside the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for _, c := range l.calls {
		if now.Sub(c) < l.window {
			n++
		}
	}
	return n
}
