package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adminkit/pkg/audit"
	"github.com/platinummonkey/adminkit/pkg/httputil"
	"github.com/platinummonkey/adminkit/pkg/middleware"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"github.com/platinummonkey/adminkit/pkg/pagination"
)

func TestServer_Routing(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.doJSON(http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, httputil.CodeNotFound, decode(t, w).Code)

	w = env.doJSON(http.MethodGet, "/users/signup", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, httputil.CodeMethodNotAllowed, decode(t, w).Code)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code, "routes live under the API prefix")
}

func TestServer_Headers(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.doJSON(http.MethodGet, "/users/me", "", "")
	assert.NotEmpty(t, w.Header().Get(httputil.RequestIDHeader))
	assert.NotEmpty(t, w.Header().Get(httputil.ResponseTimeHeader))

	req := httptest.NewRequest(http.MethodGet, DefaultAPIPrefix+"/users/me", nil)
	req.Header.Set(httputil.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(httputil.RequestIDHeader))
}

func TestServer_RolesAndTodos(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.login("user")

	w := env.doJSON(http.MethodGet, "/roles", user, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ROLE_ADMIN")

	w = env.doJSON(http.MethodGet, "/resources/tree", user, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.doJSON(http.MethodPut, "/roles/2/resources", user, `{"resource_ids":[1,2]}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.doJSON(http.MethodPost, "/todos", user, `{"title":"ship it"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.doJSON(http.MethodGet, "/todos", user, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ship it")

	w = env.doJSON(http.MethodGet, "/todos", env.login("admin"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "ship it")
}

func TestServer_Metrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	env := newTestEnv(t, func(_ *sql.DB, deps *Dependencies) {
		deps.Metrics = metrics
	})

	w := env.doJSON(http.MethodGet, "/users", env.login("user"), "")
	require.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PermissionChecksTotal.WithLabelValues("sys:user:list", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PrincipalResolveTotal.WithLabelValues("ok")))
}

func TestServer_RateLimit(t *testing.T) {
	env := newTestEnv(t, func(_ *sql.DB, deps *Dependencies) {
		deps.Limiter = middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerWindow: 1,
			WindowDuration:    time.Minute,
		})
	})

	w := env.doJSON(http.MethodGet, "/users/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.doJSON(http.MethodGet, "/users/me", "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, httputil.CodeRateLimited, decode(t, w).Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestServer_RateLimitIgnoresForwardedHeader(t *testing.T) {
	env := newTestEnv(t, func(_ *sql.DB, deps *Dependencies) {
		deps.Limiter = middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerWindow: 1,
			WindowDuration:    time.Minute,
		})
	})

	codes := make([]int, 0, 2)
	for _, forwarded := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, DefaultAPIPrefix+"/users/me", nil)
		req.RemoteAddr = "192.0.2.50:5000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestServer_AuditTrail(t *testing.T) {
	var (
		store    *audit.Store
		recorder *audit.Recorder
	)
	env := newTestEnv(t, func(db *sql.DB, deps *Dependencies) {
		store = audit.NewStore(db, db)
		recorder = audit.NewRecorder(store, 16, middleware.ClientIP, nil, nil)
		deps.Recorder = recorder
		deps.Audit = audit.NewHandlers(store)
	})

	admin := env.login("admin")
	env.doJSON(http.MethodGet, "/users?page=1&page_size=5", admin, "")
	require.NoError(t, recorder.Close(5*time.Second))

	q, err := pagination.New(1, 10)
	require.NoError(t, err)
	page, err := store.List(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Meta.Total)
	assert.Equal(t, DefaultAPIPrefix+"/users/login", page.Rows[0].URL)
	assert.Empty(t, page.Rows[0].Params, "form bodies are not recorded")
	assert.Equal(t, "page=1&page_size=5", page.Rows[1].Params)

	w := env.doJSON(http.MethodGet, "/logs", env.login("user"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	registry := prometheus.NewRegistry()
	observability.NewMetrics(registry)
	h := HealthHandler(observability.NewHealthChecker(env.db, nil, "test"), registry)

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
