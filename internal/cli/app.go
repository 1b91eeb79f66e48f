package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/salespulse/internal/analytics"
	"github.com/opensource-finance/salespulse/internal/bus"
	"github.com/opensource-finance/salespulse/internal/cache"
	"github.com/opensource-finance/salespulse/internal/domain"
	"github.com/opensource-finance/salespulse/internal/repository"
	"github.com/opensource-finance/salespulse/internal/rules"
)

// app owns every long-lived component. close releases them in reverse
// order of construction.
type app struct {
	cfg       *domain.Config
	repo      *repository.SQLRepository
	cache     domain.Cache
	bus       domain.EventBus
	rules     *rules.Engine
	analytics *analytics.Engine
}

func newApp(ctx context.Context, cfg *domain.Config) (*app, error) {
	a := &app{cfg: cfg}

	var err error
	if a.repo, err = repository.New(cfg.Repository); err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	if a.cache, err = cache.New(cfg.Cache); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	if a.bus, err = bus.New(cfg.EventBus); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	if a.rules, err = rules.NewEngine(); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	a.loadRules(ctx)

	a.analytics = analytics.NewEngine(a.repo, a.cache, a.bus, a.rules)
	a.analytics.QueryTimeout = cfg.Analytics.QueryTimeout
	a.analytics.ReportsCacheTTL = cfg.Analytics.ReportsCacheTTL

	return a, nil
}

// loadRules starts with an empty set if the stored rules cannot be read.
func (a *app) loadRules(ctx context.Context) {
	stored, err := a.repo.ListRules(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return
	}
	if err := a.rules.ReloadRules(stored); err != nil {
		slog.Warn("failed to load rules", "error", err)
		return
	}
	slog.Info("rule engine initialized", "rules_count", a.rules.RulesCount())
}

func (a *app) close() error {
	var errs []error
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}
