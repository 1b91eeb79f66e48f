package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/salespulse/internal/domain"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "salespulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultConfig(), cfg)
}

func TestLoadProTier(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SALESPULSE_TIER", "pro")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.TierPro, cfg.Tier)
	assert.Equal(t, "postgres", cfg.Repository.Driver)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.True(t, cfg.Cache.EnableTwoPhase)
	assert.Equal(t, "nats", cfg.EventBus.Type)
	assert.Equal(t, 60, cfg.Analytics.GenerateRateLimit)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  port: 8080
  allowedOrigins: ["https://dash.example.com"]
repository:
  driver: mysql
  mysqlDSN: "user:pass@tcp(db:3306)/sales"
analytics:
  queryTimeout: 3s
  generateRateLimit: 5
  generateRateWindow: 30s
logging:
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"https://dash.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "mysql", cfg.Repository.Driver)
	assert.Equal(t, "user:pass@tcp(db:3306)/sales", cfg.Repository.MySQLDSN)
	assert.Equal(t, 3*time.Second, cfg.Analytics.QueryTimeout)
	assert.Equal(t, 5, cfg.Analytics.GenerateRateLimit)
	assert.Equal(t, 30*time.Second, cfg.Analytics.GenerateRateWindow)
	assert.Equal(t, "text", cfg.Logging.Format)

	// untouched keys keep the preset
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, time.Minute, cfg.Analytics.ReportsCacheTTL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "server:\n  port: 8080\n")
	t.Setenv("SALESPULSE_SERVER_PORT", "9090")
	t.Setenv("SALESPULSE_ANALYTICS_QUERYTIMEOUT", "250ms")
	t.Setenv("SALESPULSE_DEBUG", "true")
	t.Setenv("SALESPULSE_SERVER_TRUSTEDPROXIES", "10.0.0.0/8,127.0.0.1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
	assert.Equal(t, 250*time.Millisecond, cfg.Analytics.QueryTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("SALESPULSE_REPOSITORY_DRIVER", "oracle")

		_, err := Load("")
		assert.ErrorContains(t, err, "unsupported repository driver")
	})

	t.Run("BadTimeout", func(t *testing.T) {
		path := writeFile(t, "analytics:\n  queryTimeout: 0s\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "queryTimeout")
	})
}
