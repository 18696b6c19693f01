package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/agri-weather-dashboard/internal/api/http"
	"github.com/i474232898/agri-weather-dashboard/internal/config"
	"github.com/i474232898/agri-weather-dashboard/internal/observability"
	"github.com/i474232898/agri-weather-dashboard/internal/period"
	"github.com/i474232898/agri-weather-dashboard/internal/region"
	"github.com/i474232898/agri-weather-dashboard/internal/scheduler"
	"github.com/i474232898/agri-weather-dashboard/internal/selection"
	"github.com/i474232898/agri-weather-dashboard/internal/store"
	"github.com/i474232898/agri-weather-dashboard/internal/weather"
	"github.com/i474232898/agri-weather-dashboard/internal/weather/providers"
)

const appName = "agri-weather-dashboard"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog := observability.NewLogger(cfg.LogFormat, cfg.LogLevel, appName)
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound API calls. The client timeout is the
	// outer bound; ordinary calls get the shorter per-call timeout.
	httpClient := &http.Client{
		Timeout: cfg.DownloadTimeout,
	}

	providerCfg := providers.Config{
		BaseURL: cfg.APIBaseURL,
		HTTP: providers.HTTPClientConfig{
			Client: httpClient,
			Backoff: providers.BackoffConfig{
				MaxRetries:      cfg.UpstreamMaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
			Timeout: cfg.HTTPTimeout,
		},
		Location: cfg.Location,
		Metrics:  metrics,
		Logger:   appLog,
	}
	sources := []weather.StationSource{
		providers.NewRDAProvider(providerCfg),
		providers.NewKMAProvider(providerCfg),
	}

	resolver := period.NewResolver(cfg.Location, cfg.ReportingLagDays)
	catalog := store.NewCatalogStore(metrics)
	sessions := store.NewSessionStore(cfg.SessionMaxAge, cfg.SessionMaxCount, resolver.Clock(), metrics)

	service := weather.NewService(catalog, sources, weather.ServiceConfig{
		Table:           region.DefaultTable(),
		Geography:       region.DefaultGeography(),
		Resolver:        resolver,
		DownloadTimeout: cfg.DownloadTimeout,
		Logger:          appLog,
	})

	// Scheduler that keeps the station catalogs fresh and prunes idle sessions.
	sched := scheduler.New(service, sessions, cfg.StationRefreshInterval, cfg.Location, appLog)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.DownloadTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler(appLog),
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Service:  service,
		Sessions: sessions,
		Machine:  selection.NewMachine(service, resolver),
		Metrics:  metrics,
	})

	go func() {
		appLog.Info("listening", "port", cfg.Port, "api", cfg.APIBaseURL)
		if err := app.Listen(":" + cfg.Port); err != nil {
			appLog.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLog.Error("error during shutdown", "error", err)
	}
}
