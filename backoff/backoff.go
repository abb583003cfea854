// Package backoff provides the delay strategies used when a save to the
// result cache or a remote generator connection has to be retried.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the wait before retry n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant waits the same Interval before every retry.
type Constant struct {
	Interval time.Duration
}

// NewConstant returns a Constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns Interval.
func (c *Constant) Delay(int) time.Duration { return c.Interval }

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential waits Initial * 2^(attempt-1), capped at Max when Max is set.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential returns an Exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay implements Strategy.
func (e *Exponential) Delay(attempt int) time.Duration {
	return time.Duration(ceiling(e.Initial, e.Max, attempt))
}

// Jittered draws each wait uniformly from [0, Exponential delay], so
// workers retrying against the same store spread out.
type Jittered struct {
	Initial time.Duration
	Max     time.Duration
}

// NewJittered returns a Jittered strategy.
func NewJittered(initial, maxDelay time.Duration) *Jittered {
	return &Jittered{Initial: initial, Max: maxDelay}
}

// Delay implements Strategy.
func (j *Jittered) Delay(attempt int) time.Duration {
	return time.Duration(rand.Float64() * ceiling(j.Initial, j.Max, attempt)) //nolint:gosec // jitter does not need crypto rand
}

func ceiling(initial, maxDelay time.Duration, attempt int) float64 {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(initial) * math.Pow(2, float64(attempt-1))
	if maxDelay > 0 && d > float64(maxDelay) {
		d = float64(maxDelay)
	}
	return d
}

// DefaultStrategy is Jittered between 50ms and 2s.
func DefaultStrategy() Strategy {
	return NewJittered(50*time.Millisecond, 2*time.Second)
}

// ──────────────────────────────────────────────────
// Retry
// ──────────────────────────────────────────────────

// Retry calls fn until it succeeds, it has been called attempts times, or
// ctx ends. It returns fn's last error, or ctx's error if ctx ended while
// waiting. A nil strategy uses DefaultStrategy.
func Retry(ctx context.Context, s Strategy, attempts int, fn func(context.Context) error) error {
	if s == nil {
		s = DefaultStrategy()
	}
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := range attempts {
		if attempt > 0 {
			t := time.NewTimer(s.Delay(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
