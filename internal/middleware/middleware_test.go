package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cinestream/backend/internal/auth"
	"github.com/cinestream/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    string
	}{
		{"wildcard", "*", "https://a.example", "*"},
		{"empty config allows all", "", "https://a.example", "*"},
		{"exact match", "https://app.cinestream.tv,http://localhost:3000", "http://localhost:3000", "http://localhost:3000"},
		{"exact miss", "https://app.cinestream.tv", "https://evil.example", ""},
		{"subdomain match", "https://*.cinestream.tv", "https://tv.cinestream.tv", "https://tv.cinestream.tv"},
		{"subdomain wrong scheme", "https://*.cinestream.tv", "http://tv.cinestream.tv", ""},
		{"no origin header", "https://app.cinestream.tv", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.allowed))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := serve(r, req)
			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS("*"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestJWTMiddlewares(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	admin, err := svc.Generate(uuid.New(), "ops@cinestream.tv", models.RoleAdmin)
	require.NoError(t, err)
	viewer, err := svc.Generate(uuid.New(), "v@cinestream.tv", models.RoleViewer)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", JWT(svc), RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/open", OptionalJWT(svc), func(c *gin.Context) {
		if IsAuthenticated(c) {
			role, _ := RoleFrom(c)
			c.String(http.StatusOK, string(role))
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	req := func(path, token string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		return r
	}

	assert.Equal(t, http.StatusOK, serve(r, req("/admin", admin)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, req("/admin", viewer)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req("/admin", "")).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req("/admin", "junk")).Code)

	assert.Equal(t, "viewer", serve(r, req("/open", viewer)).Body.String())
	assert.Equal(t, "anonymous", serve(r, req("/open", "junk")).Body.String())
	assert.Equal(t, "anonymous", serve(r, req("/open", "")).Body.String())
}

func TestRequireRoleWithoutJWT(t *testing.T) {
	r := gin.New()
	r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(Recover(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestLoggerSetsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)), Metrics())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = serve(r, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zap.InfoLevel, logs.All()[0].Level)
	assert.Equal(t, zap.ErrorLevel, logs.All()[1].Level)
}

func TestRequestIDEchoedInEnvelope(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", 1)
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/admin", JWT(jwtSvc), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := serve(r, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"missing authorization header","request_id":"req-42"}`, rec.Body.String())
}
