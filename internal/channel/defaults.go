package channel

import "time"

// Default limiter tuning. Relays commonly throttle around these budgets;
// staying under them avoids tripping relay-side bans.
const (
	limiterDefaultWindow = time.Minute
	publishDefaultGap    = 100 * time.Millisecond
	queryDefaultGap      = 50 * time.Millisecond
)
