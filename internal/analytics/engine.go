// Package analytics turns raw order data into persisted report summaries.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/salespulse/internal/domain"
	"github.com/opensource-finance/salespulse/internal/rules"
)

// DefaultQueryTimeout bounds each aggregate read when none is configured.
const DefaultQueryTimeout = 10 * time.Second

var tracer = otel.Tracer("salespulse-analytics")

// Engine generates and lists reports. Cache, bus and rules are optional.
type Engine struct {
	repo  domain.Repository
	cache domain.Cache
	bus   domain.EventBus
	rules *rules.Engine

	// QueryTimeout bounds each read inside a generation.
	QueryTimeout time.Duration

	// ReportsCacheTTL is how long the report history stays cached.
	ReportsCacheTTL time.Duration

	// Now is the clock used for report_date and created_at.
	Now func() time.Time
}

// NewEngine creates an engine backed by repo.
func NewEngine(repo domain.Repository, cache domain.Cache, bus domain.EventBus, ruleEngine *rules.Engine) *Engine {
	return &Engine{
		repo:            repo,
		cache:           cache,
		bus:             bus,
		rules:           ruleEngine,
		QueryTimeout:    DefaultQueryTimeout,
		ReportsCacheTTL: time.Minute,
		Now:             func() time.Time { return time.Now().UTC() },
	}
}

// GenerateReport aggregates the orders in rng, appends the summary to the
// report history and returns the full report. The reads and the insert
// share one transaction: on any failure nothing is persisted.
func (e *Engine) GenerateReport(ctx context.Context, rng domain.DateRange) (*domain.Report, error) {
	ctx, span := tracer.Start(ctx, "analytics.GenerateReport",
		trace.WithAttributes(
			attribute.String("range.start", rng.Start.String()),
			attribute.String("range.end", rng.End.String()),
		),
	)
	defer span.End()

	start := time.Now()
	now := e.Now()
	report := &domain.Report{
		ReportDate: domain.NewDate(now),
		StartDate:  rng.Start,
		EndDate:    rng.End,
		CreatedAt:  now,
	}

	err := e.repo.WithinTx(ctx, func(tx domain.ReportTx) error {
		var summary domain.SummaryRow
		if err := e.run(ctx, "summary", func(ctx context.Context) (err error) {
			summary, err = tx.Summary(ctx, rng)
			return err
		}); err != nil {
			return err
		}
		applySummary(report, summary)

		var products []domain.ProductRow
		if err := e.run(ctx, "top_products", func(ctx context.Context) (err error) {
			products, err = tx.TopProducts(ctx, rng, domain.TopN)
			return err
		}); err != nil {
			return err
		}
		report.TopProducts = normalizeProducts(products, domain.TopN)

		var customers []domain.CustomerRow
		if err := e.run(ctx, "top_customers", func(ctx context.Context) (err error) {
			customers, err = tx.TopCustomers(ctx, rng, domain.TopN)
			return err
		}); err != nil {
			return err
		}
		report.TopCustomers = normalizeCustomers(customers, domain.TopN)

		var regions []domain.GroupRow
		if err := e.run(ctx, "region_stats", func(ctx context.Context) (err error) {
			regions, err = tx.RegionStats(ctx, rng)
			return err
		}); err != nil {
			return err
		}
		report.RegionStats = normalizeGroups(regions)

		var categories []domain.GroupRow
		if err := e.run(ctx, "category_stats", func(ctx context.Context) (err error) {
			categories, err = tx.CategoryStats(ctx, rng)
			return err
		}); err != nil {
			return err
		}
		report.CategoryStats = normalizeGroups(categories)

		return e.run(ctx, "append_report", func(ctx context.Context) (err error) {
			report.ID, err = tx.AppendReport(ctx, report)
			return err
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("report generation failed",
			"start_date", rng.Start.String(),
			"end_date", rng.End.String(),
			"error", err,
		)
		return nil, err
	}

	e.invalidateReportList(ctx)

	if e.rules != nil {
		report.Flags = e.rules.Evaluate(report)
	}
	e.publishGenerated(ctx, report)

	span.SetAttributes(
		attribute.Int64("report.id", report.ID),
		attribute.Int64("report.total_orders", report.TotalOrders),
	)
	slog.Info("report generated",
		"report_id", report.ID,
		"start_date", rng.Start.String(),
		"end_date", rng.End.String(),
		"total_orders", report.TotalOrders,
		"flags", len(report.Flags),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// run executes one step of a generation under its own span and timeout,
// mapping failures onto the domain sentinels.
func (e *Engine) run(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "analytics."+name)
	defer span.End()

	timeout := e.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(qctx)
	if err == nil {
		return nil
	}
	span.RecordError(err)

	switch {
	case errors.Is(err, domain.ErrQueryTimeout), errors.Is(err, domain.ErrStoreUnavailable):
		return err
	case errors.Is(qctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %s", domain.ErrQueryTimeout, name, timeout)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, name, err)
	}
}

// invalidateReportList retires the cached history by storing a new version.
func (e *Engine) invalidateReportList(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, domain.CacheKeyReportListVersion, []byte(uuid.NewString()), 0); err != nil {
		slog.Warn("failed to invalidate report list cache", "error", err)
	}
}

// reportListVersion returns the current history version, creating one when
// none is stored. ok is false when the cache cannot be used.
func (e *Engine) reportListVersion(ctx context.Context) (version string, ok bool) {
	if e.cache == nil || e.ReportsCacheTTL <= 0 {
		return "", false
	}

	data, err := e.cache.Get(ctx, domain.CacheKeyReportListVersion)
	if err != nil {
		slog.Warn("report list version read failed", "error", err)
		return "", false
	}
	if data != nil {
		return string(data), true
	}

	version = uuid.NewString()
	if err := e.cache.Set(ctx, domain.CacheKeyReportListVersion, []byte(version), 0); err != nil {
		slog.Warn("failed to store report list version", "error", err)
		return "", false
	}
	return version, true
}

func (e *Engine) publishGenerated(ctx context.Context, report *domain.Report) {
	if e.bus == nil {
		return
	}

	payload, err := json.Marshal(domain.ReportEvent{
		ReportID:    report.ID,
		StartDate:   report.StartDate,
		EndDate:     report.EndDate,
		TotalOrders: report.TotalOrders,
		FlagCount:   len(report.Flags),
		GeneratedAt: report.CreatedAt,
	})
	if err != nil {
		slog.Warn("failed to encode report event", "error", err)
		return
	}

	if err := e.bus.Publish(ctx, domain.TopicReportGenerated, payload); err != nil {
		slog.Warn("failed to publish report event",
			"report_id", report.ID,
			"error", err,
		)
	}
}

// ListReports returns the report history, newest first. The result is
// served from the cache when possible; cache failures fall through to the
// repository. The version is read before the repository so that a report
// committed in between retires whatever this call caches.
func (e *Engine) ListReports(ctx context.Context) ([]*domain.Report, error) {
	version, cacheable := e.reportListVersion(ctx)
	if cacheable {
		if cached, ok := e.cachedReports(ctx, version); ok {
			return cached, nil
		}
	}

	reports, err := e.repo.ListReports(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: list reports: %w", domain.ErrStoreUnavailable, err)
	}
	if reports == nil {
		reports = []*domain.Report{}
	}

	if cacheable {
		if data, err := json.Marshal(reports); err == nil {
			if err := e.cache.Set(ctx, domain.ReportListKey(version), data, e.ReportsCacheTTL); err != nil {
				slog.Warn("failed to cache report list", "error", err)
			}
		}
	}
	return reports, nil
}

func (e *Engine) cachedReports(ctx context.Context, version string) ([]*domain.Report, bool) {
	data, err := e.cache.Get(ctx, domain.ReportListKey(version))
	if err != nil {
		slog.Warn("report list cache read failed", "error", err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}

	var reports []*domain.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		slog.Warn("discarding malformed report list cache entry", "error", err)
		return nil, false
	}
	if reports == nil {
		reports = []*domain.Report{}
	}
	return reports, true
}
