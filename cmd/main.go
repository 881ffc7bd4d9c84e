package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/internal/app/registry"
	"courier/internal/app/server"
	"courier/internal/app/worker"
	"courier/internal/config"
	"courier/internal/core/services"
	"courier/internal/platform/logger"
	"courier/internal/platform/telemetry"
	"courier/internal/plugins/postgres"
	redisPlugin "courier/internal/plugins/redis"
	"courier/internal/plugins/snowflake"
	"courier/internal/plugins/translate"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "DSN", cfg.Postgres.DSN)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL)
		return
	}
	log.Info("redis connected")

	// Adapters
	subscriptionRepo := postgres.NewSubscriptionMessageRepo(pdb)
	broadcastRepo := postgres.NewBroadcastMessageRepo(pdb)
	purgeSchedule := redisPlugin.NewRedisPurgeSchedule(rdb)
	ids := snowflake.NewClient(*cfg.Snowflake)
	translator := translate.NewClient(*cfg.Translate)

	// Core Services
	hub := registry.NewRegistry()
	txManager := postgres.NewTxManager(pdb)
	tokenSvc := services.NewTokenService(log, cfg.SecretToken)
	subscriptionSvc := services.NewSubscriptionService(
		log, subscriptionRepo, hub, ids, translator, purgeSchedule, txManager, cfg.Archive.Retention)
	broadcastSvc := services.NewBroadcastService(
		log, broadcastRepo, hub, ids, translator, purgeSchedule, txManager, cfg.Archive.Retention)

	// Worker
	purgeWorker := worker.NewArchivePurgeWorker(
		log, purgeSchedule, subscriptionSvc, broadcastSvc, cfg.Archive.PurgeInterval)
	go purgeWorker.Run(ctx)

	// Server
	srv := server.NewServer(
		log, cfg.Service.Name, cfg.Service.Addr, subscriptionSvc, broadcastSvc, tokenSvc, hub)
	if err := srv.Start(ctx); err != nil {
		log.Error("server stopped", "err", err)
	}
}
