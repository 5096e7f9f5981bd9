package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oomaallah/hotelops/internal/observability"
	"github.com/oomaallah/hotelops/internal/restaurant"
	"github.com/oomaallah/hotelops/internal/shared"
)

func testConfig() *Config {
	return &Config{AppEnv: "test", RateLimitPerMinute: 1000, Modules: shared.Modules{Restaurant: true}}
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	router := NewRouter(RouterParams{Logger: slog.Default(), Config: testConfig()})
	rec := serve(router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHealthzReportsBackendFailure(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger: slog.Default(),
		Config: testConfig(),
		Ready:  func(context.Context) error { return errors.New("postgres down") },
	})
	rec := serve(router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRestaurantRoutesFollowModuleFlag(t *testing.T) {
	handler := restaurant.NewHandler(slog.Default(), nil)

	cfg := testConfig()
	cfg.Modules.Restaurant = false
	router := NewRouter(RouterParams{Logger: slog.Default(), Config: cfg, RestaurantHandler: handler})
	require.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/restaurant/orders").Code)

	router = NewRouter(RouterParams{Logger: slog.Default(), Config: testConfig(), RestaurantHandler: handler})
	require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/restaurant/orders").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{Logger: slog.Default(), Config: testConfig(), Metrics: metrics})
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/healthz").Code)

	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hotelops_http_requests_total")
}

func TestRateLimitPerActor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	router := NewRouter(RouterParams{Logger: slog.Default(), Config: cfg})

	call := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-User-ID", user)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}
	first := "2f1c8a52-6b0e-4a3f-9c55-0d9b1e7a4c11"
	require.Equal(t, http.StatusOK, call(first).Code)
	limited := call(first)
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	require.Equal(t, "application/problem+json", limited.Header().Get("Content-Type"))
	require.Equal(t, http.StatusOK, call("8d3e4b6a-1f2c-4e5d-a7b8-9c0d1e2f3a4b").Code)
}
