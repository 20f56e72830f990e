package channel

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterConfig bounds one operation class: at most Ops per rolling Window,
// and never two operations closer than MinGap even when under the window
// limit. The gap smooths bursts that window accounting alone would allow.
type LimiterConfig struct {
	Ops    int
	Window time.Duration
	MinGap time.Duration
}

// Limiter enforces a LimiterConfig. Safe for concurrent use; the gap slot is
// reserved under the lock before sleeping, so interleaved waiters cannot
// corrupt the schedule.
type Limiter struct {
	rl  *rate.Limiter
	gap time.Duration

	mu   sync.Mutex
	next time.Time
}

func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.Ops <= 0 {
		cfg.Ops = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	limit := rate.Limit(float64(cfg.Ops) / cfg.Window.Seconds())
	return &Limiter{
		rl:  rate.NewLimiter(limit, cfg.Ops),
		gap: cfg.MinGap,
	}
}

// Wait blocks until both the window limit and the minimum gap permit another
// operation, or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.rl.Wait(ctx); err != nil {
		return err
	}
	if l.gap <= 0 {
		return nil
	}

	l.mu.Lock()
	at := l.next
	now := time.Now()
	if at.Before(now) {
		at = now
	}
	l.next = at.Add(l.gap)
	l.mu.Unlock()

	d := time.Until(at)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
