package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/livsafe/livsafe-api/internal/model"
	"github.com/livsafe/livsafe-api/internal/service/audit"
	apperrors "github.com/livsafe/livsafe-api/pkg/errors"
	"github.com/livsafe/livsafe-api/pkg/httputil"
	"github.com/livsafe/livsafe-api/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver map[string]model.Principal

func (s stubResolver) Resolve(_ context.Context, token string) (model.Principal, error) {
	p, ok := s[token]
	if !ok {
		return model.Principal{}, apperrors.Unauthenticated("invalid token", nil)
	}
	return p, nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAdapters(t *testing.T) {
	doctor := &model.Doctor{ID: primitive.NewObjectID(), FullName: "Dr. A"}
	org := &model.Organization{ID: primitive.NewObjectID(), Name: "City Hospital"}
	auth := NewAuthMiddleware(stubResolver{
		"doc": model.DoctorPrincipal(doctor),
		"org": model.OrganizationPrincipal(org),
	})

	r := gin.New()
	r.Use(ErrorHandler(false))
	api := r.Group("/", auth.Authenticate())
	api.GET("/doctor", Doctor(func(c *gin.Context, d *model.Doctor) {
		httputil.RespondWithSuccess(c, d.FullName)
	}))
	api.GET("/org", Organization(func(c *gin.Context, o *model.Organization) {
		httputil.RespondWithSuccess(c, o.Name)
	}))
	api.GET("/any", Any(func(c *gin.Context, p model.Principal) {
		httputil.RespondWithSuccess(c, string(p.Kind))
	}))

	w := serve(r, http.MethodGet, "/doctor", "doc")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Dr. A", decode(t, w).Data)

	w = serve(r, http.MethodGet, "/doctor", "org")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, decode(t, w).Success)

	w = serve(r, http.MethodGet, "/org", "doc")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, http.MethodGet, "/any", "org")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(model.KindOrganization), decode(t, w).Data)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/any", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/any", "forged").Code)

	req := httptest.NewRequest(http.MethodGet, "/any", nil)
	req.Header.Set("Authorization", "Basic abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid authorization format", decode(t, w).Message)
}

func TestErrorHandlerHidesInternalsOutsideDevelopment(t *testing.T) {
	for _, dev := range []bool{false, true} {
		r := gin.New()
		r.Use(ErrorHandler(dev))
		r.GET("/boom", func(c *gin.Context) {
			httputil.Fail(c, errors.New("mongo: connection refused"))
		})
		r.GET("/missing", func(c *gin.Context) {
			httputil.Fail(c, apperrors.NotFound("patient", nil))
		})

		w := serve(r, http.MethodGet, "/boom", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decode(t, w)
		assert.Equal(t, "internal server error", resp.Message)
		if dev {
			assert.Equal(t, "mongo: connection refused", resp.Error)
		} else {
			assert.Empty(t, resp.Error)
		}

		w = serve(r, http.MethodGet, "/missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "patient not found", decode(t, w).Message)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("nil map") })

	w := serve(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w).Message)
}

func TestRequestIDFeedsAuditClient(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var got audit.ClientInfo
	r.GET("/", func(c *gin.Context) {
		got = audit.ClientFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "req-42")
	req.Header.Set("User-Agent", "livsafe-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "req-42", got.RequestID)
	assert.Equal(t, "livsafe-test", got.UserAgent)

	w = serve(r, http.MethodGet, "/", "")
	assert.Len(t, w.Header().Get(HeaderXRequestID), 36)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"https://app.livsafe.example"})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.livsafe.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.livsafe.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DefaultSecurityConfig()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false), BodyLimit(8, "/upload"))
	r.POST("/json", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/upload", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/json", strings.NewReader("0123456789"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitFixedWindow(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "livsafe")
	store := NewMemoryWindowStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }

	r := gin.New()
	r.Use(ErrorHandler(false), RateLimit(RateLimitConfig{Limit: 2, Window: time.Minute, Store: store, Metrics: m}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)

	w = serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, rateLimitMessage, decode(t, w).Message)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RateLimitRejected))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	r := gin.New()
	r.Use(ErrorHandler(false), RateLimit(RateLimitConfig{Limit: 1, Window: time.Minute, Store: NewRedisWindowStore(client)}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry(), "livsafe")
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/patients/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/api/patients/abc", "")
	serve(r, http.MethodGet, "/api/patients/def", "")

	assert.Equal(t, 2.0, promtest.ToFloat64(m.RequestTotal.WithLabelValues(http.MethodGet, "/api/patients/:id", "200")))
}

func TestTimeoutReportsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false), Timeout(time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		httputil.Fail(c, c.Request.Context().Err())
	})

	w := serve(r, http.MethodGet, "/slow", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "request timed out", decode(t, w).Message)
}
