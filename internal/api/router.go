package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/getbazar/bazar-api/internal/api/handler"
	"github.com/getbazar/bazar-api/internal/api/middleware"
	"github.com/getbazar/bazar-api/internal/core/ports"
)

const (
	bodyLimit        = "101M"
	metricsNamespace = "bazar"
)

// Deps carries everything the router wires into handlers and middleware.
type Deps struct {
	Log         zerolog.Logger
	CORSOrigins []string

	Provider ports.IdentityProvider
	Registry ports.UserRegistry
	Policies ports.PolicyDecider

	Auth       ports.AuthService
	Onboarding ports.OnboardingService
	Users      ports.UserService
	Files      ports.FileService
	Tasks      ports.TaskService

	Health map[string]handler.Pinger

	// Registerer receives the HTTP metrics; nil means the default registry.
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
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: d.CORSOrigins,
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			middleware.AnonymousIDHeader, handler.IdempotencyKeyHeader,
		},
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metricsNamespace,
		Subsystem:  "http",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Health, metrics, docs (no auth required) ---
	health := handler.NewHealthHandler(d.Health)
	e.GET("/health", health.Liveness)        // liveness: is the process alive?
	e.GET("/health/ready", health.Readiness) // readiness: are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/api/v1")
	authn := middleware.Authenticate(d.Provider)
	resolve := middleware.ResolveUser(d.Registry)
	authz := middleware.NewAuthorizer(d.Policies, d.Registry)

	// guarded is the full credential chain: authenticate, resolve the local
	// user, then ask the policy engine.
	guarded := func(action, resource string) []echo.MiddlewareFunc {
		return []echo.MiddlewareFunc{authn, resolve, authz.Require(action, resource)}
	}

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Onboarding, d.Users)
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/create-anonymous", authHandler.CreateAnonymous)
	auth.GET("/anonymous-profile", authHandler.AnonymousProfile, middleware.ResolveAnonymous(d.Users))
	auth.POST("/complete-onboarding", authHandler.CompleteOnboarding, authn)
	auth.POST("/convert-anonymous", authHandler.ConvertAnonymous, guarded("convert", "users")...)
	auth.POST("/mark-for-deletion", authHandler.MarkForDeletion, guarded("mark_for_deletion", "users")...)
	auth.GET("/users-marked-for-deletion", authHandler.UsersMarkedForDeletion, guarded("read", "deletion_queue")...)

	// --- User routes ---
	userHandler := handler.NewUserHandler(d.Users)
	users := v1.Group("/users")
	users.POST("", userHandler.Create, guarded("create", "users")...)
	users.GET("", userHandler.List, guarded("list", "users")...)
	users.GET("/me", userHandler.Me, guarded("read", "users")...)
	users.GET("/:id", userHandler.Get, guarded("read", "users")...)
	users.PUT("/:id", userHandler.Update, guarded("update", "users")...)
	users.DELETE("/:id", userHandler.Delete, guarded("delete", "users")...)

	// --- File routes ---
	fileHandler := handler.NewFileHandler(d.Files)
	files := v1.Group("/files")
	files.POST("", fileHandler.Upload, guarded("create", "files")...)
	files.GET("", fileHandler.List, guarded("read", "files")...)
	files.GET("/:id", fileHandler.Get, guarded("read", "files")...)
	files.PUT("/:id", fileHandler.Rename, guarded("update", "files")...)
	files.DELETE("/:id", fileHandler.Delete, guarded("delete", "files")...)

	// --- Task routes ---
	taskHandler := handler.NewTaskHandler(d.Tasks)
	v1.POST("/tasks", taskHandler.Submit, guarded("create", "tasks")...)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				ev = log.Error().Err(v.Error)
			case v.Status >= http.StatusBadRequest:
				ev = log.Warn()
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
