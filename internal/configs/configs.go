// Package configs holds the tunable knobs for relay I/O and the signing
// agent, loaded from TOML. Zero values always fall back to safe defaults so
// a missing file is not an error condition.
package configs

import (
	"time"

	"relayvault/internal/channel"
)

type Config struct {
	Publish ClassConfig `toml:"publish"`
	Query   ClassConfig `toml:"query"`
	Agent   AgentConfig `toml:"agent"`
}

// ClassConfig tunes one operation class (publish or query).
type ClassConfig struct {
	Ops           int `toml:"ops_per_window"`
	WindowSeconds int `toml:"window_seconds"`
	MinGapMillis  int `toml:"min_gap_ms"`

	MaxAttempts    int `toml:"max_attempts"`
	BaseDelayMilli int `toml:"base_delay_ms"`
	MaxDelayMilli  int `toml:"max_delay_ms"`
}

type AgentConfig struct {
	URL              string `toml:"url"`
	OpTimeoutSeconds int    `toml:"op_timeout_seconds"`
}

func (c *Config) setDefaults() {
	if c.Publish.Ops <= 0 {
		c.Publish.Ops = 8
	}
	if c.Publish.WindowSeconds <= 0 {
		c.Publish.WindowSeconds = 60
	}
	if c.Publish.MinGapMillis <= 0 {
		c.Publish.MinGapMillis = 100
	}
	if c.Query.Ops <= 0 {
		c.Query.Ops = 30
	}
	if c.Query.WindowSeconds <= 0 {
		c.Query.WindowSeconds = 60
	}
	if c.Query.MinGapMillis <= 0 {
		c.Query.MinGapMillis = 50
	}
	if c.Agent.OpTimeoutSeconds <= 0 {
		c.Agent.OpTimeoutSeconds = 60
	}
}

// ChannelConfig converts the file-level tuning into the channel's config.
// Retry fields left at zero keep the channel's tuned defaults.
func (c Config) ChannelConfig() channel.Config {
	c.setDefaults()
	out := channel.Config{
		PublishLimiter: channel.LimiterConfig{
			Ops:    c.Publish.Ops,
			Window: time.Duration(c.Publish.WindowSeconds) * time.Second,
			MinGap: time.Duration(c.Publish.MinGapMillis) * time.Millisecond,
		},
		QueryLimiter: channel.LimiterConfig{
			Ops:    c.Query.Ops,
			Window: time.Duration(c.Query.WindowSeconds) * time.Second,
			MinGap: time.Duration(c.Query.MinGapMillis) * time.Millisecond,
		},
	}
	if c.Publish.MaxAttempts > 0 {
		out.PublishRetry = channel.Backoff{
			MaxAttempts: c.Publish.MaxAttempts,
			BaseDelay:   time.Duration(c.Publish.BaseDelayMilli) * time.Millisecond,
			MaxDelay:    time.Duration(c.Publish.MaxDelayMilli) * time.Millisecond,
		}
	}
	if c.Query.MaxAttempts > 0 {
		out.QueryRetry = channel.Backoff{
			MaxAttempts: c.Query.MaxAttempts,
			BaseDelay:   time.Duration(c.Query.BaseDelayMilli) * time.Millisecond,
			MaxDelay:    time.Duration(c.Query.MaxDelayMilli) * time.Millisecond,
		}
	}
	return out
}

// AgentTimeout returns the per-operation deadline for delegated signing.
func (c Config) AgentTimeout() time.Duration {
	c.setDefaults()
	return time.Duration(c.Agent.OpTimeoutSeconds) * time.Second
}
