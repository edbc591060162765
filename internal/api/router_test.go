// internal/api/router_test.go
package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readreward/internal/api/handler"
	apimw "readreward/internal/api/middleware"
	"readreward/internal/auth"
	"readreward/internal/util"
)

const routerSecret = "router-secret"

func newTestRouter() http.Handler {
	logger := util.NewLogger(io.Discard, "error")
	// Handlers without services: only routes that stop before the service are exercised.
	return NewRouter(Handlers{
		Completions: handler.NewCompletionHandler(nil, logger),
		Accounts:    handler.NewAccountHandler(nil, nil, logger),
		Payments:    handler.NewPaymentHandler(nil, nil, nil, logger),
	}, Options{
		JWTSecret:       routerSecret,
		AllowedOrigins:  []string{"https://app.example"},
		CompletionLimit: apimw.NewRateLimiter(100, 100, time.Minute),
	}, logger)
}

func TestRouter_PublicRoutes(t *testing.T) {
	r := newTestRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "readreward_http_requests_total")

	// Malformed callbacks are acknowledged without touching the queue.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader("{")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter()
	routes := []struct{ method, path string }{
		{http.MethodPost, "/completions"},
		{http.MethodPost, "/withdrawals"},
		{http.MethodGet, "/me/balance"},
		{http.MethodGet, "/me/transactions"},
		{http.MethodGet, "/me/stats"},
		{http.MethodPost, "/me/stats/recompute"},
		{http.MethodGet, "/me/ledger/verify"},
		{http.MethodPost, "/payments/checkout"},
		{http.MethodGet, "/payments/ch_1/status"},
	}
	for _, rt := range routes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(rt.method, rt.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.method+" "+rt.path)
	}
}

func TestRouter_AuthenticatedValidation(t *testing.T) {
	r := newTestRouter()
	token, err := auth.IssueToken(7, routerSecret, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/completions", strings.NewReader(`{"contentId": 0}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_CORS(t *testing.T) {
	r := newTestRouter()
	req := httptest.NewRequest(http.MethodOptions, "/me/balance", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}
