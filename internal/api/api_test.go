package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/salespulse/internal/analytics"
	"github.com/opensource-finance/salespulse/internal/bus"
	"github.com/opensource-finance/salespulse/internal/cache"
	"github.com/opensource-finance/salespulse/internal/domain"
	"github.com/opensource-finance/salespulse/internal/repository"
	"github.com/opensource-finance/salespulse/internal/rules"
	"github.com/opensource-finance/salespulse/internal/throttle"
)

var testServerConfig = domain.ServerConfig{
	Host:           "localhost",
	Port:           5000,
	ReadTimeout:    30,
	WriteTimeout:   30,
	AllowedOrigins: []string{"http://dashboard.local"},
}

// spyReports counts calls and returns canned results.
type spyReports struct {
	calls   atomic.Int32
	report  *domain.Report
	reports []*domain.Report
	err     error
}

func (s *spyReports) GenerateReport(ctx context.Context, rng domain.DateRange) (*domain.Report, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return &domain.Report{StartDate: rng.Start, EndDate: rng.End}, nil
}

func (s *spyReports) ListReports(ctx context.Context) ([]*domain.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reports, nil
}

type testEnv struct {
	server *Server
	repo   *repository.SQLRepository
	engine *rules.Engine
}

// newTestEnv builds a server on a temporary SQLite database.
func newTestEnv(t *testing.T, limiter *throttle.Limiter) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testServerConfig, limiter)
}

func newTestEnvWithConfig(t *testing.T, cfg domain.ServerConfig, limiter *throttle.Limiter) *testEnv {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	reportCache := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(10)
	t.Cleanup(func() { eventBus.Close() })

	ruleEngine, err := rules.NewEngine()
	require.NoError(t, err)

	engine := analytics.NewEngine(repo, reportCache, eventBus, ruleEngine)
	handler := NewHandler(engine, repo, reportCache, eventBus, ruleEngine, "test")

	return &testEnv{
		server: NewServer(cfg, handler, limiter),
		repo:   repo,
		engine: ruleEngine,
	}
}

func (e *testEnv) seedOrder(t *testing.T, id, date string, qty int, price string) {
	t.Helper()
	ctx := context.Background()

	_ = e.repo.SaveCustomer(ctx, &domain.Customer{ID: "c1", Name: "Ada", Email: "ada@example.com", Type: domain.CustomerRegular})
	_ = e.repo.SaveProduct(ctx, &domain.Product{ID: "p1", Name: "Widget", Category: "Tools", Price: decimal.RequireFromString("10")})

	require.NoError(t, e.repo.SaveOrder(ctx, &domain.Order{
		ID:         id,
		CustomerID: "c1",
		ProductID:  "p1",
		Quantity:   qty,
		TotalPrice: decimal.RequireFromString(price),
		OrderDate:  domain.MustParseDate(date),
		Region:     "North",
		Category:   "Tools",
	}))
}

func do(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

// doFrom sends a GET from remoteAddr with the given forwarding headers.
func doFrom(s *Server, target, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "error body %q", rr.Body.String())
	return body["error"]
}

func TestGenerateValidation(t *testing.T) {
	spy := &spyReports{}
	server := NewServer(testServerConfig, NewHandler(spy, nil, nil, nil, nil, "test"), nil)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"MissingBoth", "", analytics.MsgDatesRequired},
		{"MissingEnd", "?startDate=2024-01-01", analytics.MsgDatesRequired},
		{"MissingStart", "?endDate=2024-01-31", analytics.MsgDatesRequired},
		{"Unparseable", "?startDate=yesterday&endDate=2024-01-31", analytics.MsgInvalidDate},
		{"WrongLayout", "?startDate=01/01/2024&endDate=2024-01-31", analytics.MsgInvalidDate},
		{"StartAfterEnd", "?startDate=2024-02-01&endDate=2024-01-01", analytics.MsgStartAfterEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(server, http.MethodGet, "/api/analytics/generate"+tt.query, nil)

			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tt.want, errorMessage(t, rr))
		})
	}

	assert.Zero(t, spy.calls.Load(), "report service must not be called for rejected ranges")
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"Timeout", fmt.Errorf("%w: summary", domain.ErrQueryTimeout), http.StatusGatewayTimeout, "Report generation timed out"},
		{"StoreDown", fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable), http.StatusInternalServerError, "Failed to generate report"},
		{"Unexpected", errors.New("boom"), http.StatusInternalServerError, "Failed to generate report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyReports{err: tt.err}
			server := NewServer(testServerConfig, NewHandler(spy, nil, nil, nil, nil, "test"), nil)

			rr := do(server, http.MethodGet, "/api/analytics/generate?startDate=2024-01-01&endDate=2024-01-31", nil)
			require.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.msg, errorMessage(t, rr))
		})
	}
}

func TestGenerateEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedOrder(t, "o1", "2024-01-05", 2, "100")

	t.Run("SingleOrder", func(t *testing.T) {
		rr := do(env.server, http.MethodGet, "/api/analytics/generate?startDate=2024-01-01&endDate=2024-01-31", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var resp ReportResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

		assert.NotZero(t, resp.ID, "expected a persisted report id")
		assert.EqualValues(t, 1, resp.TotalOrders)
		assert.Equal(t, 100.0, resp.TotalRevenue)
		assert.Equal(t, 100.0, resp.AvgOrderValue)
		assert.Equal(t, "2024-01-01", resp.StartDate)
		assert.Equal(t, "2024-01-31", resp.EndDate)

		require.Len(t, resp.TopProducts, 1)
		assert.Equal(t, "Widget", resp.TopProducts[0].Name)
		assert.EqualValues(t, 2, resp.TopProducts[0].TotalSold)
		require.Len(t, resp.RegionWiseStats, 1)
		assert.Equal(t, "North", resp.RegionWiseStats[0].Region)
	})

	t.Run("EmptyRangeHasEmptyLists", func(t *testing.T) {
		rr := do(env.server, http.MethodGet, "/api/analytics/generate?startDate=2030-01-01&endDate=2030-01-02", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
		for _, key := range []string{"top_products", "top_customers", "region_wise_stats", "category_wise_stats", "flags"} {
			assert.Equal(t, "[]", string(raw[key]), key)
		}
		for _, key := range []string{"total_orders", "total_revenue", "avg_order_value"} {
			assert.Equal(t, "0", string(raw[key]), key)
		}
	})

	t.Run("EqualDatesAccepted", func(t *testing.T) {
		rr := do(env.server, http.MethodGet, "/api/analytics/generate?startDate=2024-01-05&endDate=2024-01-05", nil)
		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})
}

func TestReportsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	list := func(t *testing.T) []ReportSummary {
		t.Helper()
		rr := do(env.server, http.MethodGet, "/api/analytics/reports", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var out []ReportSummary
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		return out
	}

	t.Run("EmptyIsArray", func(t *testing.T) {
		rr := do(env.server, http.MethodGet, "/api/analytics/reports", nil)
		assert.Equal(t, "[]", string(bytes.TrimSpace(rr.Body.Bytes())))
	})

	t.Run("GrowsByOnePerGenerate", func(t *testing.T) {
		before := len(list(t))

		rr := do(env.server, http.MethodGet, "/api/analytics/generate?startDate=2024-01-01&endDate=2024-01-31", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		after := list(t)
		require.Len(t, after, before+1)
		assert.Equal(t, "2024-01-01", after[0].StartDate, "newest report first")
	})

	t.Run("Idempotent", func(t *testing.T) {
		first, second := list(t), list(t)
		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
		}
	})

	t.Run("Failure", func(t *testing.T) {
		spy := &spyReports{err: domain.ErrStoreUnavailable}
		server := NewServer(testServerConfig, NewHandler(spy, nil, nil, nil, nil, "test"), nil)

		rr := do(server, http.MethodGet, "/api/analytics/reports", nil)
		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Failed to get reports", errorMessage(t, rr))
	})
}

func TestRateLimit(t *testing.T) {
	target := "/api/analytics/generate?startDate=2024-01-01&endDate=2024-01-31"

	t.Run("ForwardedHeadersIgnoredFromUntrustedPeer", func(t *testing.T) {
		limiter := throttle.NewLimiter(cache.NewLRUCache(10), "generate", 2, time.Minute)
		env := newTestEnv(t, limiter)

		for i := 0; i < 2; i++ {
			rr := doFrom(env.server, target, "198.51.100.7:4000", map[string]string{
				"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1),
			})
			require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
		}

		rr := doFrom(env.server, target, "198.51.100.7:4001", map[string]string{
			"X-Forwarded-For": "203.0.113.99",
			"X-Real-IP":       "203.0.113.100",
		})
		require.Equal(t, http.StatusTooManyRequests, rr.Code, "spoofed headers must share the peer's budget")
		assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		assert.Equal(t, "Too many requests", errorMessage(t, rr))

		// a different peer has its own budget
		rr = doFrom(env.server, target, "198.51.100.8:4000", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("TrustedProxyForwardsClient", func(t *testing.T) {
		cfg := testServerConfig
		cfg.TrustedProxies = []string{"10.0.0.0/8"}
		limiter := throttle.NewLimiter(cache.NewLRUCache(10), "generate", 1, time.Minute)
		env := newTestEnvWithConfig(t, cfg, limiter)

		rr := doFrom(env.server, target, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "203.0.113.9"})
		require.Equal(t, http.StatusOK, rr.Code)

		// same client through another hop of the proxy chain
		rr = doFrom(env.server, target, "10.0.0.6:4000", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.1.1.1"})
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)

		// a client-supplied leftmost entry does not change the key
		rr = doFrom(env.server, target, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "192.0.2.77, 203.0.113.9"})
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)

		rr = doFrom(env.server, target, "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "203.0.113.10"})
		assert.Equal(t, http.StatusOK, rr.Code, "another client behind the proxy has its own budget")
	})
}

func TestRealIPMiddleware(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("fd00::/8")}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"UntrustedPeerKeepsSocket", "198.51.100.7:4000", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "198.51.100.7"},
		{"UntrustedPeerIgnoresRealIP", "198.51.100.7:4000", map[string]string{"X-Real-IP": "203.0.113.9"}, "198.51.100.7"},
		{"TrustedPeerNoHeaders", "10.0.0.5:4000", nil, "10.0.0.5"},
		{"TrustedPeerForwardedFor", "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "203.0.113.9"},
		{"TrustedPeerSkipsProxyHops", "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "192.0.2.1, 203.0.113.9, 10.2.2.2"}, "203.0.113.9"},
		{"TrustedPeerRealIP", "10.0.0.5:4000", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"TrustedPeerMalformedHop", "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "203.0.113.9, bogus"}, "10.0.0.5"},
		{"AllHopsTrusted", "10.0.0.5:4000", map[string]string{"X-Forwarded-For": "10.9.9.9, 10.2.2.2"}, "10.9.9.9"},
		{"TrustedIPv6Peer", "[fd00::1]:4000", map[string]string{"X-Forwarded-For": "2001:db8::7"}, "2001:db8::7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RealIPMiddleware(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = clientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, seen)
		})
	}

	t.Run("NoTrustedProxies", func(t *testing.T) {
		var seen string
		h := RealIPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = clientIP(r)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:4000"
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "10.0.0.5", seen)
	})
}

func TestRulesEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("CreateInvalidExpression", func(t *testing.T) {
		body, _ := json.Marshal(CreateRuleRequest{Name: "Broken", Expression: "total_orders >"})
		rr := do(env.server, http.MethodPost, "/api/analytics/rules", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	})

	t.Run("CreateMissingFields", func(t *testing.T) {
		rr := do(env.server, http.MethodPost, "/api/analytics/rules", []byte(`{"name":""}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("CreateListFlagDelete", func(t *testing.T) {
		body, _ := json.Marshal(CreateRuleRequest{
			ID:         "empty-range",
			Name:       "Empty range",
			Expression: "total_orders == 0",
			Severity:   domain.SeverityInfo,
		})
		rr := do(env.server, http.MethodPost, "/api/analytics/rules", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		rr = do(env.server, http.MethodGet, "/api/analytics/rules", nil)
		var listed struct {
			Rules []domain.ReportRule `json:"rules"`
			Count int                 `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
		require.Equal(t, 1, listed.Count)
		require.Len(t, listed.Rules, 1)
		assert.Equal(t, "empty-range", listed.Rules[0].ID)

		rr = do(env.server, http.MethodGet, "/api/analytics/generate?startDate=2030-01-01&endDate=2030-01-02", nil)
		var resp ReportResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Flags, 1)
		assert.Equal(t, "empty-range", resp.Flags[0].RuleID)

		rr = do(env.server, http.MethodDelete, "/api/analytics/rules/empty-range", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Zero(t, env.engine.RulesCount(), "rule should be unloaded")
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		rr := do(env.server, http.MethodDelete, "/api/analytics/rules/missing", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCORS(t *testing.T) {
	server := NewServer(testServerConfig, NewHandler(&spyReports{}, nil, nil, nil, nil, "test"), nil)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/analytics/reports", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, "http://dashboard.local", preflight("http://dashboard.local").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight("http://evil.example").Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := do(env.server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(env.server, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	closed := bus.NewChannelBus(1)
	_ = closed.Close()
	server := NewServer(testServerConfig, NewHandler(&spyReports{}, nil, nil, closed, nil, "test"), nil)
	rr = do(server, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
