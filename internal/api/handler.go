package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opensource-finance/salespulse/internal/domain"
	"github.com/opensource-finance/salespulse/internal/rules"
)

// ReportService generates and lists reports. *analytics.Engine implements it.
type ReportService interface {
	GenerateReport(ctx context.Context, rng domain.DateRange) (*domain.Report, error)
	ListReports(ctx context.Context) ([]*domain.Report, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	reports ReportService
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *rules.Engine
	version string
}

// NewHandler creates a new API handler. Only reports is required.
func NewHandler(reports ReportService, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, version string) *Handler {
	return &Handler{
		reports: reports,
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		version: version,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// GenerateReport handles GET /api/analytics/generate. The range has already
// been validated by ValidateDateRange.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rng, ok := DateRangeFromContext(ctx)
	if !ok {
		writeError(w, http.StatusBadRequest, "Start and end dates are required")
		return
	}

	report, err := h.reports.GenerateReport(ctx, rng)
	if err != nil {
		slog.Error("generate report failed",
			"start_date", rng.Start.String(),
			"end_date", rng.End.String(),
			"trace_id", GetTraceID(ctx),
			"error", err,
		)
		if errors.Is(err, domain.ErrQueryTimeout) {
			writeError(w, http.StatusGatewayTimeout, "Report generation timed out")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	writeJSON(w, http.StatusOK, NewReportResponse(report))
}

// ListReports handles GET /api/analytics/reports.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.ListReports(r.Context())
	if err != nil {
		slog.Error("list reports failed", "trace_id", GetTraceID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get reports")
		return
	}

	writeJSON(w, http.StatusOK, NewReportSummaries(reports))
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// Ready pings every backing service and answers 503 if any is down.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true
	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			slog.Warn("readiness check failed", "component", name, "error", err)
			checks[name] = "down"
			ready = false
			return
		}
		checks[name] = "up"
	}

	if h.repo != nil {
		check("repository", h.repo.Ping)
	}
	if h.cache != nil {
		check("cache", h.cache.Ping)
	}
	if h.bus != nil {
		check("bus", h.bus.Ping)
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

// ListRules returns the rules currently loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusOK, map[string]any{"rules": []*domain.ReportRule{}, "count": 0})
		return
	}

	loaded := h.engine.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRuleRequest is the request body for POST /api/analytics/rules.
type CreateRuleRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description,omitempty"`
	Expression  string          `json:"expression" validate:"required"`
	Severity    domain.Severity `json:"severity" validate:"omitempty,oneof=info warning critical"`
	Enabled     *bool           `json:"enabled,omitempty"`
}

// CreateRule validates, persists and hot-loads a rule, then tells other
// nodes to reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.engine == nil || h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "rules are not available")
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "name and expression are required; severity must be info, warning or critical")
		return
	}

	now := time.Now().UTC()
	rule := &domain.ReportRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Severity:    req.Severity,
		Enabled:     req.Enabled == nil || *req.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.Severity == "" {
		rule.Severity = domain.SeverityWarning
	}

	if err := h.engine.ValidateRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid CEL expression: "+err.Error())
		return
	}

	if err := h.repo.SaveRule(ctx, rule); err != nil {
		slog.Error("failed to save rule", "id", rule.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	h.rulesChanged(ctx)

	slog.Info("rule saved", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"rule": rule})
}

// DeleteRule disables a rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if h.engine == nil || h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "rules are not available")
		return
	}

	if err := h.repo.DeleteRule(ctx, ruleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		slog.Error("failed to delete rule", "id", ruleID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}

	h.rulesChanged(ctx)

	slog.Info("rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": ruleID})
}

// rulesChanged reloads the local engine and notifies other nodes. Both are
// best effort: the rule is already persisted.
func (h *Handler) rulesChanged(ctx context.Context) {
	stored, err := h.repo.ListRules(ctx)
	if err != nil {
		slog.Error("failed to list rules for reload", "error", err)
	} else if err := h.engine.ReloadRules(stored); err != nil {
		slog.Error("failed to reload rules", "error", err)
	}

	if h.bus != nil {
		if err := h.bus.Publish(ctx, domain.TopicRulesChanged, nil); err != nil {
			slog.Warn("failed to publish rules change", "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
