package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/salespulse/internal/bus"
	"github.com/opensource-finance/salespulse/internal/cache"
	"github.com/opensource-finance/salespulse/internal/domain"
	"github.com/opensource-finance/salespulse/internal/repository"
	"github.com/opensource-finance/salespulse/internal/rules"
)

func TestWorker(t *testing.T) {
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker.db"),
	})
	require.NoError(t, err)
	defer repo.Close()

	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	engine, err := rules.NewEngine()
	require.NoError(t, err)

	reportCache := cache.NewLRUCache(10)

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, repo, reportCache, engine)
		require.NoError(t, w.Start())
		assert.Equal(t, 2, w.GetStats().SubscriptionCount)

		assert.NoError(t, w.Stop())
		assert.Equal(t, 0, w.GetStats().SubscriptionCount)
	})

	t.Run("ReportGeneratedInvalidatesCache", func(t *testing.T) {
		w := NewWorker(eventBus, repo, reportCache, engine)
		require.NoError(t, w.Start())
		defer w.Stop()

		_ = reportCache.Set(ctx, domain.CacheKeyReportListVersion, []byte("v1"), 0)

		payload, _ := json.Marshal(domain.ReportEvent{
			ReportID:    7,
			StartDate:   domain.MustParseDate("2024-01-01"),
			EndDate:     domain.MustParseDate("2024-01-31"),
			TotalOrders: 3,
		})
		require.NoError(t, eventBus.Publish(ctx, domain.TopicReportGenerated, payload))

		assert.Eventually(t, func() bool {
			val, _ := reportCache.Get(ctx, domain.CacheKeyReportListVersion)
			return val == nil
		}, 2*time.Second, 5*time.Millisecond, "report list version was not dropped")
	})

	t.Run("RulesChangedReloadsEngine", func(t *testing.T) {
		w := NewWorker(eventBus, repo, reportCache, engine)
		require.NoError(t, w.Start())
		defer w.Stop()

		require.NoError(t, repo.SaveRule(ctx, &domain.ReportRule{
			ID:         "no-orders",
			Name:       "No orders",
			Expression: "total_orders == 0",
			Severity:   domain.SeverityWarning,
			Enabled:    true,
		}))
		require.NoError(t, eventBus.Publish(ctx, domain.TopicRulesChanged, nil))

		assert.Eventually(t, func() bool { return engine.RulesCount() == 1 },
			2*time.Second, 5*time.Millisecond, "rules were not reloaded")
	})
}
