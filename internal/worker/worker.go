// Package worker reacts to events published by other SalesPulse nodes.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/salespulse/internal/domain"
	"github.com/opensource-finance/salespulse/internal/rules"
)

// Worker keeps node-local state in step with the cluster:
//   - report.generated drops the local copy of the report list version
//   - rules.changed reloads the rule engine from the repository
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	cache  domain.Cache
	engine *rules.Engine

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a worker. cache and engine may be nil.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *rules.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		cache:  cache,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to report and rule events.
func (w *Worker) Start() error {
	handlers := map[string]domain.MessageHandler{
		domain.TopicReportGenerated: w.handleReportGenerated,
		domain.TopicRulesChanged:    w.handleRulesChanged,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for topic, handler := range handlers {
		sub, err := w.bus.Subscribe(w.ctx, topic, handler)
		if err != nil {
			w.unsubscribeLocked()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("worker started", "subscriptions", len(w.subscriptions))
	return nil
}

func (w *Worker) handleReportGenerated(ctx context.Context, msg *domain.Message) error {
	var event domain.ReportEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode report event: %w", err)
	}

	if w.cache != nil {
		var err error
		if local, ok := w.cache.(domain.LocalInvalidator); ok {
			err = local.InvalidateLocal(ctx, domain.CacheKeyReportListVersion)
		} else {
			err = w.cache.Delete(ctx, domain.CacheKeyReportListVersion)
		}
		if err != nil {
			return fmt.Errorf("invalidate report list: %w", err)
		}
	}

	slog.Debug("report event processed",
		"report_id", event.ReportID,
		"start_date", event.StartDate.String(),
		"end_date", event.EndDate.String(),
		"total_orders", event.TotalOrders,
		"flags", event.FlagCount,
	)
	return nil
}

func (w *Worker) handleRulesChanged(ctx context.Context, msg *domain.Message) error {
	if w.engine == nil || w.repo == nil {
		return nil
	}

	ruleList, err := w.repo.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	if err := w.engine.ReloadRules(ruleList); err != nil {
		return fmt.Errorf("reload rules: %w", err)
	}

	slog.Info("rules reloaded", "count", w.engine.RulesCount(), "message_id", msg.ID)
	return nil
}

// Stop unsubscribes from every topic.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	w.unsubscribeLocked()
	w.mu.Unlock()

	slog.Info("worker stopped")
	return nil
}

func (w *Worker) unsubscribeLocked() {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
}

// Stats describes the worker's active subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
