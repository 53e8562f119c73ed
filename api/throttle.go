package api

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// rateLimit holds the X-Ratelimit-* response header values.
type rateLimit struct {
	Allowed   int
	Used      int
	Available int
	Expiry    int64 // unix seconds when the rate window resets
}

// parseRateLimit reads the rate-limit headers from a response.
func parseRateLimit(h http.Header) rateLimit {
	return rateLimit{
		Allowed:   headerInt(h, "X-Ratelimit-Allowed"),
		Used:      headerInt(h, "X-Ratelimit-Used"),
		Available: headerInt(h, "X-Ratelimit-Available"),
		Expiry:    int64(headerInt(h, "X-Ratelimit-Expiry")),
	}
}

func headerInt(h http.Header, key string) int {
	n, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return n
}

// waitDuration returns how long to block before issuing another request.
// Zero when requests remain or when the headers are absent (all zero).
func (r rateLimit) waitDuration(now time.Time) time.Duration {
	if r.Allowed == 0 && r.Used == 0 && r.Available == 0 {
		return 0
	}
	if r.Available >= 1 {
		return 0
	}

	wait := time.Unix(r.Expiry, 0).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// waitRateLimit blocks until the rate window resets when no requests remain.
func (c *Client) waitRateLimit(ctx context.Context, h http.Header) error {
	rl := parseRateLimit(h)

	wait := rl.waitDuration(time.Now())
	if wait == 0 {
		return nil
	}

	c.logger.Debug("rate limit reached, throttling",
		"allowed", rl.Allowed,
		"used", rl.Used,
		"wait", wait,
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
