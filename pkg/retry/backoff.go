package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the given (1-based) retry
	NextDelay(attempt int) time.Duration
	// Reset resets the backoff strategy to initial state
	Reset()
}

// ExponentialBackoff is a jittered exponential backoff that never gives up
type ExponentialBackoff struct {
	b *backoff.ExponentialBackOff
}

// NewExponentialBackoff creates an exponential backoff growing from initial
// to max with the given randomization factor (0.0 to 1.0).
func NewExponentialBackoff(initial, max time.Duration, jitter float64) *ExponentialBackoff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.RandomizationFactor = jitter
	b.Multiplier = 2.0
	// retries are bounded by Config.MaxAttempts, not by elapsed time
	b.MaxElapsedTime = 0
	b.Reset()
	return &ExponentialBackoff{b: b}
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return NewExponentialBackoff(time.Second, time.Minute, 0.1)
}

// NextDelay returns the next interval of the underlying schedule
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := eb.b.NextBackOff()
	if d == backoff.Stop {
		return eb.b.MaxInterval
	}
	return d
}

// Reset resets the backoff to initial state
func (eb *ExponentialBackoff) Reset() {
	eb.b.Reset()
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Reset is a no-op for constant backoff
func (cb *ConstantBackoff) Reset() {}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
