package api

import (
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/garagedesk/staff-auth/internal/api/handler"
	"github.com/garagedesk/staff-auth/internal/api/middleware"
	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Terminals ports.TerminalService
	Staff     ports.StaffService
	Health    map[string]handler.Pinger
	JWTSecret string
	Logger    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Logger))
	e.Use(httpMetrics())

	terminalHandler := handler.NewTerminalHandler(d.Terminals)
	authHandler := handler.NewAuthHandler(d.Terminals)
	staffHandler := handler.NewStaffHandler(d.Staff)
	healthHandler := handler.NewHealthHandler(d.Health)

	authenticated := []echo.MiddlewareFunc{
		middleware.Auth(d.JWTSecret),
		middleware.RequireActiveSession(d.Terminals),
	}

	// --- Terminals ---
	e.POST("/terminals", terminalHandler.Create)
	t := e.Group("/terminals/:terminal_id")
	t.GET("/session", terminalHandler.Session)
	t.POST("/login", terminalHandler.Login)
	t.POST("/quick-access/select", terminalHandler.SelectUser)
	t.POST("/quick-access/pin", terminalHandler.SubmitPin)
	t.POST("/quick-access/manager-password", terminalHandler.SubmitManagerPassword)
	t.POST("/lock", terminalHandler.Lock)
	t.POST("/unlock/pin", terminalHandler.UnlockWithPin)
	t.POST("/unlock/password", terminalHandler.UnlockWithPassword)
	t.POST("/logout", terminalHandler.Logout)
	t.GET("/surfaces", terminalHandler.Surfaces)
	t.POST("/surfaces/:kind/open-change", terminalHandler.SetSurfaceOpen)

	e.GET("/profiles/quick-access", terminalHandler.QuickAccessProfiles)

	// --- Account ---
	e.POST("/auth/password-reset", authHandler.RequestPasswordReset)
	e.POST("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)
	e.GET("/me/capabilities", authHandler.Capabilities, authenticated...)
	e.POST("/staff", staffHandler.Create, append(authenticated, middleware.RBAC(domain.RoleManager))...)

	// --- Health probes, metrics and docs (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger logs one structured line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

var (
	httpMetricsOnce sync.Once
	httpMetricsMW   echo.MiddlewareFunc
)

// httpMetrics registers the request collectors with the default registry
// once per process.
func httpMetrics() echo.MiddlewareFunc {
	httpMetricsOnce.Do(func() {
		httpMetricsMW = echoprometheus.NewMiddleware("garage_auth_http")
	})
	return httpMetricsMW
}
