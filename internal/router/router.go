package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livsafe/livsafe-api/internal/handler/health"
	"github.com/livsafe/livsafe-api/internal/middleware"
	"github.com/livsafe/livsafe-api/pkg/httputil"
	"github.com/livsafe/livsafe-api/pkg/metrics"
	"github.com/livsafe/livsafe-api/pkg/validator"
)

// UploadPath carries its own body limit sized to the upload limit.
const UploadPath = "/api/medical-images/upload"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler registers routes both before and behind authentication.
type PublicHandler interface {
	RegisterRoutes(public, protected *gin.RouterGroup)
}

type Handlers struct {
	Auth      PublicHandler
	Health    *health.Handler
	Protected []Handler
}

type Config struct {
	Development    bool
	AllowedOrigins []string
	BodyLimit      int64
	RequestTimeout time.Duration
	// RateLimit is nil when rate limiting is disabled.
	RateLimit   *middleware.RateLimitConfig
	Metrics     *metrics.Metrics
	MetricsPath string
	// Gatherer backs the metrics endpoint; nil leaves it unmounted.
	Gatherer prometheus.Gatherer
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	h      Handlers
	config Config
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, config Config) *Router {
	validator.Register()

	engine := gin.New()
	engine.HandleMethodNotAllowed = false

	r := &Router{engine: engine, auth: auth, h: h, config: config}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)
	if config.Metrics != nil {
		engine.Use(middleware.Metrics(config.Metrics))
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(config.AllowedOrigins)),
		middleware.ErrorHandler(config.Development),
		middleware.Timeout(config.RequestTimeout),
		middleware.BodyLimit(config.BodyLimit, UploadPath),
	)

	r.setup()
	return r
}

func (r *Router) setup() {
	if r.config.Gatherer != nil {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.HandlerFor(r.config.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.engine.Group("/api")
	if r.config.RateLimit != nil {
		api.Use(middleware.RateLimit(*r.config.RateLimit))
	}

	if r.h.Health != nil {
		r.h.Health.RegisterRoutes(r.engine, api)
	}

	protected := api.Group("", r.auth.Authenticate())
	if r.h.Auth != nil {
		r.h.Auth.RegisterRoutes(api, protected)
	}
	for _, h := range r.h.Protected {
		h.RegisterRoutes(protected)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httputil.Response{Success: false, Message: "route not found"})
	})
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
