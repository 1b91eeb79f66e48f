package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// IncrementCounter atomically increments a counter and returns new value.
	// The counter resets once window has elapsed since its first increment.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// LocalInvalidator is implemented by caches that keep a node-local tier.
// InvalidateLocal drops key from that tier only.
type LocalInvalidator interface {
	InvalidateLocal(ctx context.Context, key string) error
}

// The report history is cached under a versioned key. Every committed report
// stores a new version, so a list read that started before the commit can only
// fill a key that no reader looks up any more.
const (
	// CacheKeyReportListVersion holds the current history version stamp.
	CacheKeyReportListVersion = "reports:version"

	cacheKeyReportListPrefix = "reports:list:"
)

// ReportListKey returns the cache key of the history at version.
func ReportListKey(version string) string {
	return cacheKeyReportListPrefix + version
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `mapstructure:"type"`

	// Local LRU cache settings (Community tier)
	LocalMaxSize int           `mapstructure:"localMaxSize"`
	LocalTTL     time.Duration `mapstructure:"localTTL"`

	// Redis settings (Pro tier)
	RedisAddr     string `mapstructure:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword"`
	RedisDB       int    `mapstructure:"redisDB"`

	// Two-phase settings
	EnableTwoPhase bool `mapstructure:"enableTwoPhase"` // If true, check local first, then Redis
}
