package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/visitors/:id", handlers...)
	return r
}

func TestJWT(t *testing.T) {
	claims := &models.JWTClaims{UserID: "staff-1", Role: models.RoleReceptionist}
	var seenUserID string
	r := newRouter(JWT(validatorStub{claims: claims}), func(c *gin.Context) {
		seenUserID = c.GetString(ContextUserIDKey)
		c.Status(http.StatusOK)
	})

	cases := map[string]int{
		"":             http.StatusUnauthorized,
		"Basic abc":    http.StatusUnauthorized,
		"Bearer bad":   http.StatusUnauthorized,
		"Bearer  good": http.StatusOK,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/visitors/v-1", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, header)
	}
	assert.Equal(t, "staff-1", seenUserID)
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	cases := []struct {
		claims *models.JWTClaims
		want   int
	}{
		{nil, http.StatusUnauthorized},
		{&models.JWTClaims{UserID: "u", Role: models.RoleReceptionist}, http.StatusForbidden},
		{&models.JWTClaims{UserID: "u", Role: models.RoleAdmin}, http.StatusOK},
		{&models.JWTClaims{UserID: "u", Role: models.RoleSuperAdmin}, http.StatusOK},
	}
	for _, tc := range cases {
		r := newRouter(withClaims(tc.claims), RequireAdmin(), ok)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visitors/v-1", nil))
		assert.Equal(t, tc.want, rec.Code)
	}
}

func TestRBACAllowsSelf(t *testing.T) {
	r := newRouter(withClaims(&models.JWTClaims{UserID: "v-1", Role: models.RoleReceptionist}),
		RBAC(string(models.RoleAdmin), "SELF"), func(c *gin.Context) { c.Status(http.StatusOK) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visitors/v-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type auditWriterStub struct {
	logs []*models.AuditLog
}

func (a *auditWriterStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestAuditRecordsSuccessfulAccess(t *testing.T) {
	writer := &auditWriterStub{}
	status := http.StatusOK
	r := newRouter(withClaims(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}),
		Audit(writer, nil, models.AuditActionHistoryView, models.AuditResourceVisitor),
		func(c *gin.Context) { c.Status(status) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/visitors/v-1", nil))
	require.Len(t, writer.logs, 1)
	assert.Equal(t, "v-1", *writer.logs[0].ResourceID)
	assert.Equal(t, "admin-1", *writer.logs[0].UserID)

	status = http.StatusNotFound
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/visitors/v-2", nil))
	assert.Len(t, writer.logs, 1)
}

func TestResponseMetaCacheHit(t *testing.T) {
	var meta map[string]interface{}
	r := newRouter(WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visitors/v-1", nil))
	assert.Equal(t, "HIT", rec.Header().Get(CacheHeader))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
