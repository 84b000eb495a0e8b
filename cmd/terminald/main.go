// Package main provides the entrypoint for the wardrobe terminal agent.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/yuanyuexiang/wardrobe-terminal/internal/api"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/api/middleware"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/config"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/gateway"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/identity"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/startup"
	"github.com/yuanyuexiang/wardrobe-terminal/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "wardrobe-terminald"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting wardrobe terminal agent")

	// Get configuration from environment
	port := os.Getenv("TERMINAL_PORT")
	if port == "" {
		port = "8090"
	}

	env := os.Getenv("TERMINAL_ENV")
	if env == "" {
		env = "development"
	}
	devMode := env != "production"

	configPath := os.Getenv("TERMINAL_CONFIG_PATH")
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		configPath = filepath.Join(home, ".wardrobe-terminal", "config.json")
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	ctx := context.Background()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        os.Getenv("OTEL_ENABLED") == "true",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Load persisted configuration
	store := config.NewStore(config.StoreConfig{
		Path:     configPath,
		Defaults: config.Default("wardrobe-terminal", Version),
		Logger:   log,
	})
	cfg := store.Load(ctx)
	log.Info().
		Str("path", configPath).
		Bool("is_configured", cfg.IsConfigured).
		Msg("configuration loaded")

	// Resolve device identity once at boot so every screen has data
	provider := identity.NewProvider(identity.ProviderConfig{
		Mode:           identity.Mode(os.Getenv("TERMINAL_MODE")),
		DeviceTypeHint: os.Getenv("TERMINAL_DEVICE_TYPE"),
		PerInstallID:   os.Getenv("TERMINAL_PER_INSTALL_ID") == "true",
		Store:          store,
		Logger:         log,
	})
	device := provider.Resolve(ctx)
	log.Info().Str("device_id", device.DeviceID).Msg("device identity ready")

	// Backend gateway, rebuilt on every config change
	backend := gateway.NewClient(gateway.ClientConfig{
		Store:    store,
		DevMode:  devMode,
		ProxyURL: os.Getenv("TERMINAL_PROXY_URL"),
		Logger:   log,
	})
	defer backend.Close()

	// Startup state machine
	manager := startup.NewManager(startup.ManagerConfig{
		Store:    store,
		Identity: provider,
		Gateway:  backend,
		Logger:   log,
	})

	// Approval poller: re-check until an administrator assigns a boutique
	pollInterval := startup.DefaultPollInterval
	if raw := os.Getenv("TERMINAL_POLL_INTERVAL_SECONDS"); raw != "" {
		if secs, parseErr := strconv.Atoi(raw); parseErr == nil && secs > 0 {
			pollInterval = time.Duration(secs) * time.Second
		}
	}
	poller := startup.NewPoller(startup.PollerConfig{
		Manager:  manager,
		Interval: pollInterval,
		Logger:   log,
	})

	pollCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	go func() {
		result := poller.Run(pollCtx)
		if result.State == startup.StateApproved {
			log.Info().
				Str("boutique_id", store.Get().SelectedBoutiqueID).
				Msg("terminal approved, storefront unlocked")
		}
	}()

	// Local API for the UI shell
	router := api.NewRouter(api.RouterConfig{
		Version:          Version,
		BuildTime:        BuildTime,
		Logger:           log,
		Metrics:          metrics,
		StartupManager:   manager,
		ConfigStore:      store,
		IdentityProvider: provider,
		ConnectionTester: backend,
	})

	server := &http.Server{
		Addr:         "127.0.0.1:" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("local API listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	stopPoller()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("agent stopped")
}
