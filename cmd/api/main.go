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
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/osmqa/internal/adapters/http"
	natsadapter "github.com/samirrijal/osmqa/internal/adapters/nats"
	"github.com/samirrijal/osmqa/internal/adapters/postgres"
	"github.com/samirrijal/osmqa/internal/adapters/valkey"
	"github.com/samirrijal/osmqa/internal/core/ports"
	"github.com/samirrijal/osmqa/internal/core/rules"
	"github.com/samirrijal/osmqa/internal/core/usecases"
	"github.com/samirrijal/osmqa/internal/pkg/config"
	"github.com/samirrijal/osmqa/internal/pkg/i18n"
	"github.com/samirrijal/osmqa/internal/pkg/logging"
	"github.com/samirrijal/osmqa/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("osmqa-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{
		MaxConns: int32(cfg.Database.MaxConns),
		Schema:   cfg.Analyser.Schema,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.ReportStats()
			}
		}
	}()

	deps := &http.Dependencies{DB: db, DocsPath: "api/openapi.yaml", Version: version}

	// Cache
	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Namespace); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc, deps.Cache = cache, cache
	}

	// NATS: publisher for run requests, raw connection for the WebSocket relay
	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, run requests disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}
	var natsConn *nats.Conn
	if nc, err := natsadapter.Connect(cfg.NATS.URL, "osmqa-api-ws"); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer nc.Drain()
		natsConn = nc
	}
	deps.NATS = natsConn

	// Use cases
	registry := rules.Defaults(cfg.Analyser.Highway)
	msgs := i18n.New()
	runRepo := postgres.NewRunRepo(db)

	deps.Rules = usecases.NewRuleService(registry, msgs)
	deps.Issues = usecases.NewIssueService(postgres.NewIssueRepo(db), cacheSvc)
	deps.Runs = usecases.NewRunService(runRepo, registry, publisher)
	deps.Evaluate = usecases.NewEvaluateService()

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    4 * 1024 * 1024, // evaluated geometries can be long
		AppName:      "osmqa API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Accept-Language",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
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
