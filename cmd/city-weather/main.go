package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/city-weather/internal/aggregator"
	httpapi "github.com/i474232898/city-weather/internal/api/http"
	"github.com/i474232898/city-weather/internal/config"
	"github.com/i474232898/city-weather/internal/favorites"
	"github.com/i474232898/city-weather/internal/geo"
	"github.com/i474232898/city-weather/internal/scheduler"
	"github.com/i474232898/city-weather/internal/weather"
	"github.com/i474232898/city-weather/pkg/logger"
)

const startupTimeout = 30 * time.Second

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting", "config", cfg)

	// Shared HTTP client for outbound weather and geocoding calls.
	httpClient := &http.Client{
		Timeout: cfg.Timeout(),
	}

	client, err := weather.NewClient(httpClient, cfg.ClientConfig())
	if err != nil {
		log.Error("failed to build weather client", "error", err)
		os.Exit(1)
	}

	var geocoder geo.Geocoder
	switch cfg.GeocoderProvider {
	case "google":
		geocoder = geo.NewGoogleGeocoder(cfg.GoogleAPIKey, cfg.Timeout())
	default:
		geocoder = geo.NewOpenWeatherGeocoder(httpClient, cfg.APIKey, cfg.BaseURL)
	}
	resolver := geo.NewResolver(geocoder, log)

	opts := []aggregator.Option{aggregator.WithLogger(log)}
	if cfg.SequentialFetch {
		opts = append(opts, aggregator.WithSequential())
	}
	hub := aggregator.NewHub(resolver, client, cfg.MaxCities, opts...)
	defer hub.Close()

	favs := favorites.NewMemoryStore(cfg.MaxFavorites)

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	added := favorites.Seed(startCtx, favs, resolver, cfg.Favorites(), log)
	log.Info("favorites seeded", "added", added)

	// The default city fills the "current" slot; a failure is not fatal.
	if cfg.DefaultCity != "" {
		if _, err := hub.Current().Resolve(startCtx, cfg.DefaultCity); err != nil && !weather.IsPartial(err) {
			log.Warn("could not resolve default city", "city", cfg.DefaultCity, "error", err)
		}
	}
	cancelStart()

	// Scheduler that periodically refreshes every favorite.
	sched := scheduler.New(favs, hub, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(httpapi.AppConfig("city-weather", cfg.Timeout()+10*time.Second))

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "city-weather",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Hub:       hub,
		Favorites: favs,
		Geocoder:  resolver,
		Logger:    log,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()
	log.Info("listening", "port", cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
