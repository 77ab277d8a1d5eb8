package main

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/service"
	"github.com/noah-isme/frontdesk-api/pkg/config"
)

const routerTestSecret = "router-test-secret"

type pingerStub struct{}

func (pingerStub) PingContext(ctx context.Context) error { return nil }

type visitorLookupStub struct{}

func (visitorLookupStub) FindByID(ctx context.Context, id string) (*models.VisitorRecord, error) {
	if id != "v-1" {
		return nil, sql.ErrNoRows
	}
	return &models.VisitorRecord{ID: id, InputByUserID: "staff-1"}, nil
}

type pendingLookupStub struct{}

func (pendingLookupStub) FindPendingByVisitor(ctx context.Context, visitorID string) (*models.VisitorRequest, error) {
	if visitorID != "v-1" {
		return nil, sql.ErrNoRows
	}
	return &models.VisitorRequest{ID: "req-1", VisitorID: visitorID, Type: models.RequestTypeDeletion, Status: models.RequestStatusPending}, nil
}

func (p pendingLookupStub) FindPendingByVisitors(ctx context.Context, visitorIDs []string) ([]models.VisitorRequest, error) {
	var out []models.VisitorRequest
	for _, id := range visitorIDs {
		if req, err := p.FindPendingByVisitor(ctx, id); err == nil {
			out = append(out, *req)
		}
	}
	return out, nil
}

func buildTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{APIPrefix: "/api/v1"}
	metrics := service.NewMetricsService()
	auth := service.NewAuthService(nil, nil, zap.NewNop(), service.AuthConfig{
		AccessTokenSecret: routerTestSecret,
		AccessTokenExpiry: time.Hour,
	})
	status := service.NewStatusService(visitorLookupStub{}, pendingLookupStub{}, nil, metrics, zap.NewNop(), service.StatusServiceConfig{})
	return newRouter(cfg, zap.NewNop(), routerDeps{
		db:      pingerStub{},
		metrics: metrics,
		auth:    auth,
		status:  status,
	})
}

func bearer(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(routerTestSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func serve(router *gin.Engine, method, path, authorization string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouterRegistersRouteTable(t *testing.T) {
	router := buildTestRouter(t)

	var got []string
	for _, route := range router.Routes() {
		got = append(got, route.Method+" "+route.Path)
	}
	want := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/refresh",
		"POST /api/v1/auth/logout",
		"GET /api/v1/auth/me",
		"POST /api/v1/auth/change-password",
		"GET /api/v1/users",
		"POST /api/v1/users",
		"GET /api/v1/users/:id",
		"PUT /api/v1/users/:id",
		"DELETE /api/v1/users/:id",
		"POST /api/v1/visitors",
		"GET /api/v1/visitors",
		"GET /api/v1/visitors/:id",
		"PUT /api/v1/visitors/:id",
		"DELETE /api/v1/visitors/:id",
		"POST /api/v1/visitors/:id/checkout",
		"GET /api/v1/visitors/:id/history",
		"POST /api/v1/deletion-request",
		"POST /api/v1/edit-request",
		"POST /api/v1/approve-deletion/:id",
		"POST /api/v1/approve-edit/:id",
		"POST /api/v1/reject/:type/:id",
		"GET /api/v1/requests",
		"GET /api/v1/requests/:id",
		"GET /api/v1/deletion-requests/visitor/:id/status",
		"POST /api/v1/batch-status-check",
		"GET /api/v1/metrics/summary",
	}
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestRouterRequiresTokenOnSecuredRoutes(t *testing.T) {
	router := buildTestRouter(t)

	secured := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/visitors"},
		{http.MethodDelete, "/api/v1/visitors/v-1"},
		{http.MethodPost, "/api/v1/deletion-request"},
		{http.MethodPost, "/api/v1/edit-request"},
		{http.MethodPost, "/api/v1/approve-deletion/req-1"},
		{http.MethodPost, "/api/v1/approve-edit/req-1"},
		{http.MethodPost, "/api/v1/reject/deletion/req-1"},
		{http.MethodGet, "/api/v1/requests"},
		{http.MethodGet, "/api/v1/deletion-requests/visitor/v-1/status"},
		{http.MethodPost, "/api/v1/batch-status-check"},
		{http.MethodGet, "/api/v1/metrics/summary"},
	}
	for _, route := range secured {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := serve(router, route.method, route.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			w = serve(router, route.method, route.path, "Bearer not-a-token", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouterAdminOnlyRoutes(t *testing.T) {
	router := buildTestRouter(t)
	staff := bearer(t, "staff-1", models.RoleReceptionist)

	for _, path := range []string{"/api/v1/users", "/api/v1/users/u-1", "/api/v1/metrics/summary"} {
		w := serve(router, http.MethodGet, path, staff, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	w := serve(router, http.MethodGet, "/api/v1/metrics/summary", bearer(t, "admin-1", models.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degradedStatusLookups"`)
}

func TestRouterStatusRoutesReachHandlers(t *testing.T) {
	router := buildTestRouter(t)
	staff := bearer(t, "staff-1", models.RoleReceptionist)

	w := serve(router, http.MethodGet, "/api/v1/deletion-requests/visitor/v-1/status", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hasPendingDeletion":true`)

	w = serve(router, http.MethodGet, "/api/v1/deletion-requests/visitor/v-404/status", staff, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, http.MethodPost, "/api/v1/batch-status-check", staff, []byte(`{"visitorIds":["v-1","v-2"]}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"v-2"`)
}

func TestRouterPublicRoutes(t *testing.T) {
	router := buildTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/docs/index.html", "", nil).Code)
}
