package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/salespulse/internal/cache"
	"github.com/opensource-finance/salespulse/internal/domain"
)

type failingCache struct {
	domain.Cache
}

func (failingCache) IncrementCounter(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func TestLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("AllowsUpToLimit", func(t *testing.T) {
		l := NewLimiter(cache.NewLRUCache(10), "generate", 3, time.Minute)

		for i := 1; i <= 3; i++ {
			d, err := l.Allow(ctx, "10.0.0.1")
			require.NoError(t, err)
			require.True(t, d.Allowed, "call %d should be allowed", i)
			assert.Equal(t, int64(3-i), d.Remaining)
		}

		d, _ := l.Allow(ctx, "10.0.0.1")
		assert.False(t, d.Allowed, "4th call should be rejected")
		assert.Zero(t, d.Remaining)
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		l := NewLimiter(cache.NewLRUCache(10), "generate", 1, time.Minute)

		d, _ := l.Allow(ctx, "a")
		assert.True(t, d.Allowed)
		d, _ = l.Allow(ctx, "b")
		assert.True(t, d.Allowed)
		d, _ = l.Allow(ctx, "a")
		assert.False(t, d.Allowed, "second call for a should be rejected")
	})

	t.Run("DisabledWhenLimitZero", func(t *testing.T) {
		l := NewLimiter(cache.NewLRUCache(10), "generate", 0, time.Minute)
		require.Nil(t, l)
		for i := 0; i < 100; i++ {
			d, _ := l.Allow(ctx, "x")
			require.True(t, d.Allowed, "nil limiter must allow everything")
		}
	})

	t.Run("FailsOpen", func(t *testing.T) {
		l := NewLimiter(failingCache{}, "generate", 1, time.Minute)

		d, err := l.Allow(ctx, "x")
		assert.Error(t, err, "counter error should be returned")
		assert.True(t, d.Allowed, "call should be allowed when the counter fails")
	})

	t.Run("RejectionWrapsSentinel", func(t *testing.T) {
		l := NewLimiter(cache.NewLRUCache(10), "generate", 1, time.Minute)

		d, _ := l.Allow(ctx, "y")
		assert.NoError(t, d.Err())
		d, _ = l.Allow(ctx, "y")
		assert.ErrorIs(t, d.Err(), domain.ErrRateLimited)
	})
}
