package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bioreactor-monitor/config"
	"bioreactor-monitor/internal/api"
	"bioreactor-monitor/internal/auth"
	"bioreactor-monitor/internal/db"
	"bioreactor-monitor/internal/ingest"
	"bioreactor-monitor/internal/logger"
	"bioreactor-monitor/internal/model"
	"bioreactor-monitor/internal/notification"
	"bioreactor-monitor/internal/realtime"
	"bioreactor-monitor/internal/retention"
	"bioreactor-monitor/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.WithComponent("main")
	log.Info().Str("path", configPath).Msg("configuration loaded")

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("auth.jwt_secret must be configured")
	}
	defaultSeverity, ok := model.ParseSeverity(cfg.Alerting.DefaultSeverity)
	if !ok {
		log.Fatal().Str("severity", cfg.Alerting.DefaultSeverity).Msg("invalid alerting.default_severity")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger.WithComponent("db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	appStore := store.NewGormStore(gormDB, cfg.Database.QueryTimeout)

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.New(logger.WithComponent("realtime"))

	webpushOptions := notification.OptionsFromConfig(cfg.Push)
	var notifier ingest.Notifier
	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, webpushOptions, logger.WithComponent("notification"))
		pool.Start(ctx)
		notifier = pool
	} else {
		log.Warn().Msg("web push is disabled or VAPID keys are missing; critical alerts will not be pushed")
	}

	ingestSvc := ingest.NewService(appStore, hub, notifier, logger.WithComponent("ingest"))

	retentionSvc := retention.NewService(cfg.Retention, appStore, logger.WithComponent("retention"))
	go retentionSvc.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Store:           appStore,
		Ingest:          ingestSvc,
		Hub:             hub,
		Auth:            auth.NewManager(cfg.Auth, cfg.Server.IngestAPIKeys),
		Webpush:         webpushOptions,
		Realtime:        realtime.OptionsFromConfig(cfg.Realtime),
		DefaultSeverity: defaultSeverity,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Log:             logger.WithComponent("http"),
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(cfg.Server, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server ListenAndServe")
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server Shutdown")
	}
	// Websocket connections are hijacked and not tracked by Shutdown.
	hub.Close()
	cancel()

	if sqlDB, err := gormDB.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info().Msg("server gracefully stopped")
}
