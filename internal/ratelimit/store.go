package ratelimit

import (
	"context"
	"time"

	limiter "github.com/ulule/limiter/v3"
)

// StoreLimiter adapts a limiter.Store (typically Redis backed) to Allower.
// Unlike the sliding window implementation it counts in fixed windows, which
// is enough for the admin surface.
type StoreLimiter struct {
	Store limiter.Store
}

// Allow consumes one unit from the bucket for the key.
func (s StoreLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if s.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	instance := limiter.New(s.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := instance.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}
