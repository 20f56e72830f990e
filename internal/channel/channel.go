package channel

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"relayvault/internal/logging"
	"relayvault/internal/record"
)

var ErrNoLiveTransport = errors.New("channel: transport does not support subscriptions")

// Config carries per-class tuning. Zero values fall back to the tuned
// defaults.
type Config struct {
	PublishLimiter LimiterConfig
	QueryLimiter   LimiterConfig
	PublishRetry   Backoff
	QueryRetry     Backoff
}

func (c *Config) setDefaults() {
	if c.PublishLimiter.Ops == 0 {
		c.PublishLimiter = LimiterConfig{Ops: 8, Window: limiterDefaultWindow, MinGap: publishDefaultGap}
	}
	if c.QueryLimiter.Ops == 0 {
		c.QueryLimiter = LimiterConfig{Ops: 30, Window: limiterDefaultWindow, MinGap: queryDefaultGap}
	}
	if c.PublishRetry.MaxAttempts == 0 {
		c.PublishRetry = PublishBackoff()
	}
	if c.QueryRetry.MaxAttempts == 0 {
		c.QueryRetry = QueryBackoff()
	}
}

// Channel is a Transport hardened for unreliable, rate-limited relays.
// Publish and query use independently tuned limiter and retry parameters.
type Channel struct {
	transport Transport
	pubLim    *Limiter
	queryLim  *Limiter
	pubRetry  Backoff
	qryRetry  Backoff
	log       logging.Logger
}

func New(t Transport, cfg Config, log logging.Logger) *Channel {
	cfg.setDefaults()
	return &Channel{
		transport: t,
		pubLim:    NewLimiter(cfg.PublishLimiter),
		queryLim:  NewLimiter(cfg.QueryLimiter),
		pubRetry:  cfg.PublishRetry,
		qryRetry:  cfg.QueryRetry,
		log:       log,
	}
}

// Publish sends one record, rate limited and retried on transient failure.
func (c *Channel) Publish(ctx context.Context, rec *record.Record) error {
	op := uuid.NewString()
	attempt := 0
	return Do(ctx, c.pubLim, c.pubRetry, func(ctx context.Context) error {
		attempt++
		err := c.transport.Publish(ctx, rec)
		if err != nil {
			c.log.Debugf("publish %s attempt %d: %v", op, attempt, err)
		}
		return err
	})
}

// Query fetches a batch of records matching the filter. The transport's
// filtering is not trusted; results are re-checked client side.
func (c *Channel) Query(ctx context.Context, f record.Filter) ([]record.Record, error) {
	op := uuid.NewString()
	var out []record.Record
	attempt := 0
	err := Do(ctx, c.queryLim, c.qryRetry, func(ctx context.Context) error {
		attempt++
		batch, err := c.transport.Query(ctx, f)
		if err != nil {
			c.log.Debugf("query %s attempt %d: %v", op, attempt, err)
			return err
		}
		out = out[:0]
		for _, r := range batch {
			if f.Matches(&r) {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe opens a live feed of matching records when the underlying
// transport supports one. The subscription itself is rate limited like a
// query; delivered records are not.
func (c *Channel) Subscribe(ctx context.Context, f record.Filter) (<-chan record.Record, error) {
	live, ok := c.transport.(LiveTransport)
	if !ok {
		return nil, ErrNoLiveTransport
	}
	if err := c.queryLim.Wait(ctx); err != nil {
		return nil, err
	}
	return live.Subscribe(ctx, f)
}
