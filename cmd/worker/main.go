package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/reporthub/internal/config"
	"github.com/geocoder89/reporthub/internal/db"
	"github.com/geocoder89/reporthub/internal/observability"
	"github.com/geocoder89/reporthub/internal/producer"
	"github.com/geocoder89/reporthub/internal/repo/postgres"
	"github.com/geocoder89/reporthub/internal/worker"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	schemaCtx, cancelSchema := config.WithTimeout(10 * time.Second)

	if err := postgres.EnsureSchema(schemaCtx, pool); err != nil {
		cancelSchema()
		log.Error("schema setup failed", "err", err)
		os.Exit(1)
	}
	cancelSchema()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	reportsRepo := postgres.NewReportsRepo(pool, prom)
	artifactsRepo := postgres.NewArtifactsRepo(pool, prom)
	execsRepo := postgres.NewExecutionsRepo(pool, prom)

	w := worker.New(worker.Config{
		PollInterval:     cfg.PollInterval,
		StaleLockTimeout: cfg.StaleLockTimeout,
		MaxAttempts:      cfg.MaxAttempts,
		WorkerID:         cfg.WorkerID,
		RecoverEvery:     10,
	}, reportsRepo, artifactsRepo, execsRepo, producer.New(), log, nil, prom)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerHealthPort),
		Handler:           w.HealthHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health listener failed", "err", err)
		}
	}()

	log.Info("worker started", "worker_id", cfg.WorkerID, "poll_interval", cfg.PollInterval.String())

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = healthSrv.Shutdown(shutdownCtx)

	log.Info("worker shutdown complete")
}
