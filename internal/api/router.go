// Package api provides the terminal agent's local HTTP API. The kiosk UI
// shell is its only intended client.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/api/handler"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/api/middleware"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/config"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/startup"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version          string
	BuildTime        string
	Logger           zerolog.Logger
	Metrics          *middleware.Metrics
	StartupManager   *startup.Manager
	ConfigStore      *config.Store
	IdentityProvider *identity.Provider
	ConnectionTester handler.ConnectionTester
}

// NewRouter creates the local API router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime)
	startupHandler := handler.NewStartupHandler(cfg.StartupManager)
	configHandler := handler.NewConfigHandler(cfg.ConfigStore, cfg.ConnectionTester)
	deviceHandler := handler.NewDeviceHandler(cfg.IdentityProvider)

	registerRateLimit := middleware.RateLimitByIP(middleware.RegisterRateLimit)
	backendRateLimit := middleware.RateLimitByIP(middleware.BackendRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/startup", func(r chi.Router) {
			// State checks reach the backend; registration creates records.
			r.With(backendRateLimit).Get("/state", startupHandler.GetState)
			r.With(registerRateLimit).Post("/register", startupHandler.Register)
		})

		r.Route("/config", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", configHandler.Get)
			r.Put("/", configHandler.Update)
			r.Post("/reset", configHandler.Reset)
			r.With(backendRateLimit).Post("/test", configHandler.TestConnection)
		})

		r.With(standardRateLimit).Get("/device", deviceHandler.Get)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})
	})

	return r
}
