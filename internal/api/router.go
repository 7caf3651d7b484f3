package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/wolfwhale/lms-core/internal/api/handler"
	"github.com/wolfwhale/lms-core/internal/api/middleware"
	"github.com/wolfwhale/lms-core/internal/core/domain"
	"github.com/wolfwhale/lms-core/internal/core/ports"
)

// Deps are the services and adapters the HTTP API is wired to.
type Deps struct {
	Auth       ports.AuthService
	Ledger     ports.LedgerService
	Schools    ports.SchoolService
	Reconciler ports.ReconcilerService
	Dispatcher handler.XPDispatcher
	Webhooks   handler.WebhookDecoder
	Pingers    []handler.Pinger
	JWTSecret  string
	Log        zerolog.Logger

	// Registerer receives the HTTP request metrics. Defaults to the
	// Prometheus default registerer.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	registerer := d.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "lms",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/health")
		},
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	userHandler := handler.NewUserHandler(d.Auth)
	gamificationHandler := handler.NewGamificationHandler(d.Ledger, d.Dispatcher)
	schoolHandler := handler.NewSchoolHandler(d.Schools)
	webhookHandler := handler.NewBillingWebhookHandler(d.Webhooks, d.Reconciler, d.Log)
	healthHandler := handler.NewHealthHandler(d.Pingers...)

	// --- Health probes and metrics (no auth required) ---
	e.GET("/health", healthHandler.Liveness)       // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Auth routes ---
	e.POST("/auth/login", authHandler.Login)

	// --- Provider webhooks (authenticated by signature) ---
	e.POST("/webhooks/stripe", webhookHandler.Stripe)

	// --- Authenticated API ---
	staff := middleware.RBAC(domain.RoleOwner, domain.RoleAdmin, domain.RoleTeacher)
	managers := middleware.RBAC(domain.RoleOwner, domain.RoleAdmin)
	owners := middleware.RBAC(domain.RoleOwner)

	v1 := e.Group("/v1", middleware.Auth(d.JWTSecret))

	v1.POST("/users", userHandler.Create, managers)
	v1.DELETE("/users/:id", userHandler.Delete, managers)

	v1.GET("/users/:id/progress", gamificationHandler.Progress)
	v1.POST("/users/:id/xp", gamificationHandler.AwardXP, staff)
	v1.POST("/users/:id/activity", gamificationHandler.RecordActivity)
	v1.POST("/xp/batch", gamificationHandler.AwardBatch, owners)

	v1.POST("/schools", schoolHandler.Register, owners)
	v1.GET("/schools/:id", schoolHandler.Get, managers)

	return e
}

// requestLogger emits one structured access log line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Path(), "/health")
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
