package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	appointmenth "github.com/famalink/telemed-api/internal/handler/appointment"
	authh "github.com/famalink/telemed-api/internal/handler/auth"
	calendarh "github.com/famalink/telemed-api/internal/handler/calendar"
	consultationh "github.com/famalink/telemed-api/internal/handler/consultation"
	doctorh "github.com/famalink/telemed-api/internal/handler/doctor"
	healthh "github.com/famalink/telemed-api/internal/handler/health"
	patienth "github.com/famalink/telemed-api/internal/handler/patient"
	realtimeh "github.com/famalink/telemed-api/internal/handler/realtime"
	"github.com/famalink/telemed-api/internal/middleware"
	"github.com/famalink/telemed-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Handlers struct {
	Auth         *authh.Handler
	Appointment  *appointmenth.Handler
	Calendar     *calendarh.Handler
	Patient      *patienth.Handler
	Consultation *consultationh.Handler
	Doctor       *doctorh.Handler
	Health       *healthh.Handler
	Realtime     *realtimeh.Handler
}

type Config struct {
	ServiceName    string
	Release        bool
	RequestTimeout time.Duration
	RateLimit      rate.Limit
	RateBurst      int
	AllowedOrigins []string
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	limiter  *middleware.RateLimiter
	metrics  *metrics.Metrics
	handlers Handlers
	config   Config
}

func NewRouter(config Config, auth *middleware.AuthMiddleware, m *metrics.Metrics, handlers Handlers) *Router {
	if config.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.ServiceName == "" {
		config.ServiceName = "telemed-api"
	}

	engine := gin.New()
	// Handlers pass *gin.Context as context.Context; it must carry the
	// request's deadline and cancellation.
	engine.ContextWithFallback = true

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		otelgin.Middleware(config.ServiceName),
		middleware.Metrics(m),
		middleware.CORS(config.AllowedOrigins),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)

	return &Router{
		engine: engine,
		auth:   auth,
		limiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		}),
		metrics:  m,
		handlers: handlers,
		config:   config,
	}
}

// Setup mounts every route and returns the engine.
func (r *Router) Setup() *gin.Engine {
	r.handlers.Health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.metrics.Registry, promhttp.HandlerOpts{})))

	api := r.engine.Group("/api")
	api.Use(middleware.Timeout(r.config.RequestTimeout))

	public := api.Group("")
	public.Use(r.limiter.RateLimit())

	protected := api.Group("")
	protected.Use(r.auth.Authenticate(), r.limiter.RateLimit())

	r.handlers.Auth.RegisterRoutes(public, protected)
	for _, h := range []Handler{
		r.handlers.Appointment,
		r.handlers.Calendar,
		r.handlers.Patient,
		r.handlers.Consultation,
		r.handlers.Doctor,
	} {
		h.RegisterRoutes(protected)
	}

	ws := r.engine.Group("")
	ws.Use(r.auth.AuthenticateQuery())
	r.handlers.Realtime.RegisterRoutes(ws)

	return r.engine
}
