package channel

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Backoff tunes the retry schedule for one operation class.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Tuned defaults. Publish fails fast so an interactive caller gets an answer
// quickly; query tolerates longer waits since a fetch can be retried
// silently in the background.
func PublishBackoff() Backoff {
	return Backoff{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func QueryBackoff() Backoff {
	return Backoff{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 15 * time.Second}
}

// DelayFor returns the capped exponential delay ceiling before the given
// retry (0-based). The actual sleep is jittered below this ceiling but the
// ceiling itself is non-decreasing.
func (b Backoff) DelayFor(attempt int) time.Duration {
	d := b.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	if d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

// jittered spreads the sleep over [ceiling/2, ceiling] so synchronized
// clients do not hammer a recovering relay in lockstep.
func (b Backoff) jittered(attempt int) time.Duration {
	d := b.DelayFor(attempt)
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// Retry runs op, retrying transient failures up to the attempt budget.
// Permanent failures and caller timeouts abort immediately; an abandoned
// context cancels any pending backoff sleep without waiting it out.
func Retry(ctx context.Context, b Backoff, op func(ctx context.Context) error) error {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 1
	}
	var last error
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		switch Classify(err) {
		case ClassPermanent, ClassTimeout:
			return err
		}
		last = err
		if attempt+1 == b.MaxAttempts {
			break
		}
		timer := time.NewTimer(b.jittered(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, b.MaxAttempts, last)
}

// Do composes rate limiting and backoff around an arbitrary operation
// without coupling the two: every attempt, including retries, first waits
// for a limiter slot. Either wrapper may be nil/zero to opt out.
func Do(ctx context.Context, lim *Limiter, b Backoff, op func(ctx context.Context) error) error {
	wrapped := op
	if lim != nil {
		wrapped = func(ctx context.Context) error {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
			return op(ctx)
		}
	}
	return Retry(ctx, b, wrapped)
}
