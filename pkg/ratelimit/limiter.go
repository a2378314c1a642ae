package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming budget if so
	Allow() bool
	// Wait blocks until a request is allowed
	Wait(ctx context.Context) error
	// Reset resets the rate limiter state
	Reset()
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = (*ResetWindow)(nil)
)

// WaitFunc is notified before a limiter sleeps
type WaitFunc func(wait time.Duration, resetAt time.Time)

// TokenBucket is the local request budget: capacity requests per window,
// refilled in full once the window has elapsed.
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	clock        Clock
	onWait       WaitFunc
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return NewTokenBucketWithClock(capacity, refillPeriod, SystemClock)
}

// NewTokenBucketWithClock creates a token bucket driven by the given clock
func NewTokenBucketWithClock(capacity int, refillPeriod time.Duration, clock Clock) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   clock.Now(),
		clock:        clock,
	}
}

// OnWait registers a callback invoked before the bucket sleeps
func (tb *TokenBucket) OnWait(fn WaitFunc) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.onWait = fn
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		resetAt := tb.lastRefill.Add(tb.refillPeriod)
		wait := resetAt.Sub(tb.clock.Now())
		onWait := tb.onWait
		tb.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if onWait != nil {
			onWait(wait, resetAt)
		}
		if err := tb.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// Remaining returns the tokens left in the current window
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.clock.Now()
}

func (tb *TokenBucket) refill() {
	now := tb.clock.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// ResetWindow mirrors the server's view of the rate-limit window, as reported
// by the remaining/reset response headers. A zero remaining count with a
// reset time in the future makes Wait block until that time.
type ResetWindow struct {
	remaining int // -1 when unknown
	resetAt   time.Time
	fallback  time.Duration
	slack     time.Duration
	clock     Clock
	onWait    WaitFunc
	mu        sync.Mutex
}

// NewResetWindow creates a window tracker. fallback is the wait applied when
// the server signals exhaustion without a usable reset time.
func NewResetWindow(fallback time.Duration, clock Clock) *ResetWindow {
	if clock == nil {
		clock = SystemClock
	}
	return &ResetWindow{
		remaining: -1,
		fallback:  fallback,
		slack:     time.Second,
		clock:     clock,
	}
}

// OnWait registers a callback invoked before the window sleeps
func (w *ResetWindow) OnWait(fn WaitFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onWait = fn
}

// Update records the server-reported remaining budget and reset time
func (w *ResetWindow) Update(remaining int, resetAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.remaining = remaining
	if !resetAt.IsZero() {
		w.resetAt = resetAt
	}
}

// Exhaust marks the window as used up until resetAt, or for the fallback
// duration when resetAt is zero or already past.
func (w *ResetWindow) Exhaust(resetAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	if resetAt.IsZero() || !resetAt.After(now) {
		resetAt = now.Add(w.fallback)
	}
	w.remaining = 0
	w.resetAt = resetAt
}

// Allow reports whether the server window still has budget
func (w *ResetWindow) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allowLocked()
}

func (w *ResetWindow) allowLocked() bool {
	if w.remaining != 0 {
		return true
	}
	if !w.clock.Now().Before(w.resetAt) {
		w.remaining = -1
		return true
	}
	return false
}

// Wait blocks until the window has reset
func (w *ResetWindow) Wait(ctx context.Context) error {
	w.mu.Lock()
	if w.allowLocked() {
		w.mu.Unlock()
		return nil
	}
	resetAt := w.resetAt
	wait := resetAt.Sub(w.clock.Now()) + w.slack
	onWait := w.onWait
	w.mu.Unlock()

	if onWait != nil {
		onWait(wait, resetAt)
	}
	if err := w.clock.Sleep(ctx, wait); err != nil {
		return err
	}

	w.mu.Lock()
	w.remaining = -1
	w.mu.Unlock()
	return nil
}

// ResetAt returns the last known reset time
func (w *ResetWindow) ResetAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resetAt
}

// Reset forgets all server-reported state
func (w *ResetWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.remaining = -1
	w.resetAt = time.Time{}
}
