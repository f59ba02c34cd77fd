package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rentsignal/aircomps/internal/adapters/airbnb"
	"github.com/rentsignal/aircomps/internal/adapters/http"
	natsadapter "github.com/rentsignal/aircomps/internal/adapters/nats"
	"github.com/rentsignal/aircomps/internal/adapters/postgres"
	"github.com/rentsignal/aircomps/internal/adapters/valkey"
	"github.com/rentsignal/aircomps/internal/core/ports"
	"github.com/rentsignal/aircomps/internal/core/usecases"
	"github.com/rentsignal/aircomps/internal/pkg/config"
	"github.com/rentsignal/aircomps/internal/pkg/logging"
	"github.com/rentsignal/aircomps/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("aircomps-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup("aircomps-api", cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() {
				_ = shutdown(context.Background())
			}()
		}
	}

	// Upstream client
	upstream, err := airbnb.NewClient(airbnb.Config{
		BaseURL:  cfg.Upstream.BaseURL,
		ProxyURL: cfg.Upstream.ProxyURL,
		Timeout:  time.Duration(cfg.Upstream.Timeout) * time.Second,
		Currency: cfg.Upstream.Currency,
		Language: cfg.Upstream.Language,
	})
	if err != nil {
		log.Fatalf("upstream client: %v", err)
	}

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// NATS
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Database (optional, powers the search history)
	var db *postgres.DB
	var historyRepo ports.SearchLogRepository
	if cfg.Database.Enabled {
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		historyRepo = postgres.NewSearchLogRepo(db)
	}

	// Use cases
	compsSvc := usecases.NewCompsService(upstream, nilCache(cache), nilEvents(publisher), historyRepo, usecases.CompsConfig{
		BoxPolicy:       cfg.Search.BoxPolicy,
		MaxRadiusMiles:  cfg.Search.MaxRadiusMiles,
		CacheTTLSeconds: cfg.Search.CacheTTL,
		Currency:        cfg.Upstream.Currency,
		Locale:          cfg.Upstream.Language,
		Zoom:            cfg.Upstream.Zoom,
	})
	listingSvc := usecases.NewListingService(upstream, nilCache(cache), cfg.Search.CacheTTL)
	historySvc := usecases.NewHistoryService(historyRepo)

	deps := &http.Dependencies{
		Comps:              compsSvc,
		Listings:           listingSvc,
		History:            historySvc,
		NATS:               natsConn,
		DB:                 db,
		Cache:              cache,
		AuthToken:          cfg.Auth.Token,
		DefaultRadiusMiles: cfg.Search.DefaultRadiusMiles,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "AirComps API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// nilCache avoids handing the services a typed nil behind a non-nil
// interface when the cache failed to connect.
func nilCache(c *valkey.Cache) ports.CacheService {
	if c == nil {
		return nil
	}
	return c
}

func nilEvents(p *natsadapter.Publisher) ports.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
