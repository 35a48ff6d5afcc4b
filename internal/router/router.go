package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/headstart-tech/admissions-api/internal/middleware"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// StreamHandler registers long-lived routes that must not carry the request timeout.
type StreamHandler interface {
	Handler
	RegisterStreamRoutes(*gin.RouterGroup)
}

// MetricsHandler is implemented by the prometheus handler.
type MetricsHandler interface {
	Middleware() gin.HandlerFunc
	Handler() gin.HandlerFunc
}

type RouterConfig struct {
	RateLimitEnabled    bool
	RateLimit           rate.Limit
	RateBurst           int
	RequestTimeout      time.Duration
	DefaultUniversityID string
	AllowedOrigins      []string
}

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	tenant        middleware.TenantResolver
	healthH       Handler
	permissionH   Handler
	notificationH StreamHandler
	metricsH      MetricsHandler
	logger        *logger.Logger
	config        RouterConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	tenant middleware.TenantResolver,
	healthH Handler,
	permissionH Handler,
	notificationH StreamHandler,
	metricsH MetricsHandler,
	log *logger.Logger,
	config RouterConfig,
) *Router {
	engine := gin.New()

	r := &Router{
		engine:        engine,
		auth:          auth,
		tenant:        tenant,
		healthH:       healthH,
		permissionH:   permissionH,
		notificationH: notificationH,
		metricsH:      metricsH,
		logger:        log,
		config:        config,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
	)
	if metricsH != nil {
		engine.Use(metricsH.Middleware())
	}
	if len(config.AllowedOrigins) > 0 {
		engine.Use(middleware.CORS(middleware.DefaultCORSConfig(config.AllowedOrigins...)))
	}
	engine.Use(
		middleware.ErrorHandler(log),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	if r.metricsH != nil {
		r.engine.GET("/metrics", r.metricsH.Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)

	// Everything else acts for an authenticated user within one university.
	protected := api.Group("")
	protected.Use(
		r.auth.Authenticate(),
		middleware.Tenant(r.tenant, r.config.DefaultUniversityID),
	)
	r.notificationH.RegisterStreamRoutes(protected)

	timed := protected.Group("")
	timed.Use(middleware.Timeout(middleware.TimeoutConfig{Duration: r.requestTimeout()}))
	r.permissionH.RegisterRoutes(timed)
	r.notificationH.RegisterRoutes(timed)
}

func (r *Router) requestTimeout() time.Duration {
	if r.config.RequestTimeout <= 0 {
		return middleware.DefaultTimeoutConfig().Duration
	}
	return r.config.RequestTimeout
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
