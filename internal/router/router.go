package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/remindly/reminder-api/internal/handler/dispatch"
	"github.com/remindly/reminder-api/internal/handler/dlq"
	"github.com/remindly/reminder-api/internal/handler/health"
	promhandler "github.com/remindly/reminder-api/internal/handler/prometheus"
	"github.com/remindly/reminder-api/internal/handler/stats"
	"github.com/remindly/reminder-api/internal/handler/webhook"
	"github.com/remindly/reminder-api/internal/middleware"
	"github.com/remindly/reminder-api/pkg/logger"
)

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	healthH   *health.Handler
	promH     *promhandler.Handler
	webhookH  *webhook.Handler
	dlqH      *dlq.Handler
	dispatchH *dispatch.Handler
	statsH    *stats.Handler
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	Timeout    time.Duration
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	promH *promhandler.Handler,
	webhookH *webhook.Handler,
	dlqH *dlq.Handler,
	dispatchH *dispatch.Handler,
	statsH *stats.Handler,
	config Config,
	log *logger.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.ErrorHandler(log),
		middleware.Timeout(config.Timeout),
	)
	engine.Use(middleware.CORS(config.CORSConfig))

	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:    engine,
		auth:      auth,
		healthH:   healthH,
		promH:     promH,
		webhookH:  webhookH,
		dlqH:      dlqH,
		dispatchH: dispatchH,
		statsH:    statsH,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	// Public surface: health, metrics and the gateway webhook, which
	// authenticates with its own shared secret.
	r.healthH.RegisterRoutes(api)
	api.GET("/metrics", r.promH.Handler())
	r.webhookH.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.dlqH.RegisterRoutes(protected)
	r.dispatchH.RegisterRoutes(protected)
	r.statsH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
