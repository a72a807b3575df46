package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments the counter and arms its expiry on the first hit in
// one round trip, so a crash between INCR and PEXPIRE cannot leave a
// counter without a TTL.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Window is the state of a fixed-window counter after a hit.
type Window struct {
	Count   int64
	Limit   int64
	ResetIn time.Duration
}

// Allowed reports whether the hit fit inside the limit.
func (w Window) Allowed() bool {
	return w.Count <= w.Limit
}

// HitWindow records one request against scope.
func (c *Client) HitWindow(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	if err := c.ready(); err != nil {
		return Window{}, err
	}
	raw, err := fixedWindow.Run(ctx, c.rdb, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("rate window %s: %w", scope, err)
	}
	if len(raw) != 2 {
		return Window{}, fmt.Errorf("rate window %s: unexpected reply %v", scope, raw)
	}
	reset := time.Duration(raw[1]) * time.Millisecond
	if reset < 0 {
		reset = window
	}
	return Window{Count: raw[0], Limit: limit, ResetIn: reset}, nil
}
