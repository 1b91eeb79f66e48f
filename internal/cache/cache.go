package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/salespulse/internal/domain"
)

var (
	_ domain.Cache            = (*LRUCache)(nil)
	_ domain.Cache            = (*RedisCache)(nil)
	_ domain.Cache            = (*TwoPhaseCache)(nil)
	_ domain.LocalInvalidator = (*LRUCache)(nil)
	_ domain.LocalInvalidator = (*TwoPhaseCache)(nil)
)

// New creates a cache from configuration:
//   - "memory": a process-local LRU
//   - "redis" with two-phase: an LRU in front of Redis
//   - "redis": Redis only
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// remote is the subset of RedisCache the two-phase cache depends on.
type remote interface {
	domain.Cache
}

// TwoPhaseCache reads through a node-local LRU (L1) into a shared store
// (L2). Writes and deletes go to both tiers. Other nodes learn about a
// delete through the report.generated event and call InvalidateLocal.
type TwoPhaseCache struct {
	local  *LRUCache
	remote remote
	l1TTL  time.Duration
}

// NewTwoPhaseCache creates a two-phase cache with LRU + Redis.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	r, err := NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	return newTwoPhase(NewLRUCache(cfg.LocalMaxSize), r, cfg.LocalTTL), nil
}

func newTwoPhase(local *LRUCache, r remote, l1TTL time.Duration) *TwoPhaseCache {
	if l1TTL <= 0 {
		l1TTL = 30 * time.Second
	}
	return &TwoPhaseCache{local: local, remote: r, l1TTL: l1TTL}
}

// Get checks L1, then L2. An L2 hit is copied into L1.
func (c *TwoPhaseCache) Get(ctx context.Context, key string) ([]byte, error) {
	if val, _ := c.local.Get(ctx, key); val != nil {
		return val, nil
	}

	val, err := c.remote.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if val != nil {
		_ = c.local.Set(ctx, key, val, c.l1TTL)
	}
	return val, nil
}

// Set writes L1 with the shorter of ttl and the L1 TTL, and L2 with ttl.
func (c *TwoPhaseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	l1TTL := c.l1TTL
	if ttl > 0 && ttl < l1TTL {
		l1TTL = ttl
	}
	_ = c.local.Set(ctx, key, value, l1TTL)
	return c.remote.Set(ctx, key, value, ttl)
}

// Delete removes key from both tiers.
func (c *TwoPhaseCache) Delete(ctx context.Context, key string) error {
	_ = c.local.Delete(ctx, key)
	return c.remote.Delete(ctx, key)
}

// InvalidateLocal removes key from L1 only.
func (c *TwoPhaseCache) InvalidateLocal(ctx context.Context, key string) error {
	return c.local.Delete(ctx, key)
}

// IncrementCounter always goes to L2 so every node shares one count.
func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, key, window)
}

// Ping checks both tiers.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.local.Ping(ctx); err != nil {
		return fmt.Errorf("L1 ping failed: %w", err)
	}
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("L2 ping failed: %w", err)
	}
	return nil
}

// Close closes both tiers.
func (c *TwoPhaseCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

// Stats returns L1 statistics.
func (c *TwoPhaseCache) Stats() (size int, capacity int) {
	return c.local.Stats()
}
