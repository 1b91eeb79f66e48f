package domain

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Config holds the complete SalesPulse configuration.
type Config struct {
	// Server settings
	Server ServerConfig `mapstructure:"server"`

	// Tier selects the default component stack
	Tier Tier `mapstructure:"tier"`

	// Component configurations
	Repository RepositoryConfig `mapstructure:"repository"`
	Cache      CacheConfig      `mapstructure:"cache"`
	EventBus   EventBusConfig   `mapstructure:"eventBus"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`

	// Observability
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"readTimeout"`  // seconds
	WriteTimeout   int      `mapstructure:"writeTimeout"` // seconds
	AllowedOrigins []string `mapstructure:"allowedOrigins"`

	// TrustedProxies lists the peers, as addresses or CIDR prefixes, whose
	// X-Forwarded-For and X-Real-IP headers are believed. Empty trusts none
	// and every client is keyed on its socket address.
	TrustedProxies []string `mapstructure:"trustedProxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// AnalyticsConfig tunes report generation.
type AnalyticsConfig struct {
	// QueryTimeout bounds each aggregate query.
	QueryTimeout time.Duration `mapstructure:"queryTimeout"`

	// ReportsCacheTTL is how long the report history stays cached.
	ReportsCacheTTL time.Duration `mapstructure:"reportsCacheTTL"`

	// GenerateRateLimit is the number of generations a client may run per
	// GenerateRateWindow. Zero disables limiting.
	GenerateRateLimit  int           `mapstructure:"generateRateLimit"`
	GenerateRateWindow time.Duration `mapstructure:"generateRateWindow"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-process cache + channels
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			ReadTimeout:    30,
			WriteTimeout:   30,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./salespulse.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Analytics: AnalyticsConfig{
			QueryTimeout:       10 * time.Second,
			ReportsCacheTTL:    time.Minute,
			GenerateRateLimit:  0,
			GenerateRateWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "salespulse",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "salespulse",
		MaxOpenConns: 25,
		MaxIdleConns: 5,
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       30 * time.Second,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Analytics.GenerateRateLimit = 60
	cfg.Tracing.Enabled = true
	return cfg
}

// Validate checks the configuration for values the services cannot start with.
func (c *Config) Validate() error {
	switch c.Repository.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported repository driver: %q", c.Repository.Driver)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache type: %q", c.Cache.Type)
	}
	switch c.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("unsupported event bus type: %q", c.EventBus.Type)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return fmt.Errorf("server.trustedProxies: %w", err)
	}
	if c.Analytics.QueryTimeout <= 0 {
		return fmt.Errorf("analytics.queryTimeout must be positive")
	}
	if c.Analytics.GenerateRateLimit < 0 {
		return fmt.Errorf("analytics.generateRateLimit must not be negative")
	}
	if c.Analytics.GenerateRateLimit > 0 && c.Analytics.GenerateRateWindow <= 0 {
		return fmt.Errorf("analytics.generateRateWindow must be positive when rate limiting is enabled")
	}
	return nil
}
