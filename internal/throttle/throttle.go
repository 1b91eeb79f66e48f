// Package throttle counts requests per client in fixed windows.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/salespulse/internal/domain"
)

// Limiter allows up to Limit calls per Window for each key. Counts live in
// the cache, so a Redis-backed cache shares the budget across nodes.
type Limiter struct {
	cache  domain.Cache
	prefix string
	limit  int64
	window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int64
	Limit     int64
	Remaining int64
	Window    time.Duration
}

// NewLimiter returns nil when limit is not positive; a nil *Limiter allows
// everything.
func NewLimiter(cache domain.Cache, prefix string, limit int, window time.Duration) *Limiter {
	if cache == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		cache:  cache,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow records one call for key and reports whether it is within budget.
// A counter failure is returned with Allowed set, so callers can fail open.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}

	count, err := l.cache.IncrementCounter(ctx, l.prefix+":"+key, l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Window: l.window}, fmt.Errorf("increment counter: %w", err)
	}

	d := Decision{
		Allowed: count <= l.limit,
		Count:   count,
		Limit:   l.limit,
		Window:  l.window,
	}
	if d.Allowed {
		d.Remaining = l.limit - count
	}
	return d, nil
}

// Err returns domain.ErrRateLimited for a rejected call, nil otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %d of %d in %s", domain.ErrRateLimited, d.Count, d.Limit, d.Window)
}
