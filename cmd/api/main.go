package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfel-backend/internal/application/reconcile"
	"portfel-backend/internal/config"
	"portfel-backend/internal/interfaces/router"
	"portfel-backend/internal/pkg/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load: " + err.Error())
	}
	logger.SetGlobalLogger(logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: !cfg.IsProduction(),
	}))

	app, svc, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	if svc != nil {
		sqlDB, err := svc.DB.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("database: get DB")
		}
		if err := sqlDB.Ping(); err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		log.Info().Msg("database connected")
	}
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		log.Info().Msg("redis connected")
	}

	var sched *reconcile.Scheduler
	if svc != nil && cfg.ReconcileSchedule != "" {
		sched = reconcile.NewScheduler(log.Logger)
		job := svc.ReconcileJob(5 * time.Minute)
		if err := sched.Add(cfg.ReconcileSchedule, job); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("invalid RECONCILE_SCHEDULE")
		}
		sched.Start()
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msgf("Server running at http://localhost:%s (health: /health/json)", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	if sched != nil {
		sched.Stop()
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if svc != nil {
		if sqlDB, err := svc.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
