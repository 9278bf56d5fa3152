package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dense-analysis/coinfolio/internal/market"
	"github.com/dense-analysis/coinfolio/internal/metrics"
	"github.com/dense-analysis/coinfolio/internal/model"
	portfolioservice "github.com/dense-analysis/coinfolio/internal/portfolio"
	"github.com/dense-analysis/coinfolio/internal/route/auth"
	"github.com/dense-analysis/coinfolio/internal/session"
	"github.com/dense-analysis/coinfolio/internal/store"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type stubMarket struct{}

func (stubMarket) FetchPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{}, nil
}

func (stubMarket) CoinByID(ctx context.Context, id string) (*model.Coin, error) {
	return nil, nil
}

func (stubMarket) ListCoins(ctx context.Context, params market.ListParams) ([]model.Coin, error) {
	return []model.Coin{{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"}}, nil
}

func (stubMarket) Search(ctx context.Context, query string) ([]model.Coin, error) {
	return []model.Coin{}, nil
}

func newTestRouter(t *testing.T, password string) *mux.Router {
	t.Helper()

	return newTestRouterWithOrigins(t, password, []string{"http://localhost:3000"})
}

func newTestRouterWithOrigins(t *testing.T, password string, allowedOrigins []string) *mux.Router {
	t.Helper()

	registry := prometheus.NewRegistry()
	appMetrics := metrics.New(registry)
	service := portfolioservice.New(
		store.NewFileBackend(t.TempDir(), "test"),
		stubMarket{},
		zap.NewNop(),
		portfolioservice.WithMetrics(appMetrics),
	)
	service.Load(context.Background())

	var sessions *session.Store
	hash := ""

	if password != "" {
		var err error
		sessions, err = session.New("0123456789abcdef0123456789abcdef")
		require.NoError(t, err)

		hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(hashBytes)
	}

	return newRouter(routerOptions{
		service:        service,
		market:         stubMarket{},
		auth:           auth.NewHandler(sessions, hash, zap.NewNop()),
		metrics:        appMetrics,
		gatherer:       registry,
		currency:       "usd",
		allowedOrigins: allowedOrigins,
		logger:         zap.NewNop(),
	})
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))

	return recorder
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, "")

	recorder := get(router, "/healthz")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status": "ok", "loaded": true, "holdings": 0}`, recorder.Body.String())
	assert.NotEmpty(t, recorder.Header().Get(requestIDHeader))
}

func TestRequestIDIsKept(t *testing.T) {
	router := newTestRouter(t, "")

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	request.Header.Set(requestIDHeader, "abc-123")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, "abc-123", recorder.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	require.Equal(t, http.StatusOK, get(router, "/healthz").Code)

	recorder := get(router, "/metrics")
	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, `coinfolio_http_requests_total{method="GET",status="200"} 1`)
	assert.Contains(t, body, "coinfolio_portfolio_total_value 0")
}

func TestRoutesWithoutPassword(t *testing.T) {
	router := newTestRouter(t, "")

	assert.Equal(t, http.StatusOK, get(router, "/api/portfolio").Code)
	assert.Equal(t, http.StatusOK, get(router, "/portfolio").Code)

	recorder := get(router, "/api/coins")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"id":"bitcoin"`)

	recorder = get(router, "/")
	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/portfolio", recorder.Header().Get("Location"))
}

func TestRoutesWithPassword(t *testing.T) {
	router := newTestRouter(t, "hunter2")

	assert.Equal(t, http.StatusForbidden, get(router, "/api/portfolio").Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/api/coins").Code)

	recorder := get(router, "/portfolio")
	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/login", recorder.Header().Get("Location"))

	assert.Equal(t, http.StatusOK, get(router, "/login").Code)
	assert.Equal(t, http.StatusOK, get(router, "/healthz").Code)

	request := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("password=hunter2"))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusFound, recorder.Code)

	cookies := recorder.Result().Cookies()
	require.NotEmpty(t, cookies)

	request = httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	request.AddCookie(cookies[0])
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestNoCORSWithoutAllowedOrigins(t *testing.T) {
	router := newTestRouterWithOrigins(t, "", nil)

	request := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	request.Header.Set("Origin", "http://localhost:3000")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, "")

	request := httptest.NewRequest(http.MethodOptions, "/api/portfolio", nil)
	request.Header.Set("Origin", "http://localhost:3000")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, "http://localhost:3000", recorder.Header().Get("Access-Control-Allow-Origin"))

	request = httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	request.Header.Set("Origin", "http://evil.example")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
}
