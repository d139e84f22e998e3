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
	httpx "github.com/geocoder89/reporthub/internal/http"
	"github.com/geocoder89/reporthub/internal/observability"
	"github.com/geocoder89/reporthub/internal/repo/postgres"
	"github.com/geocoder89/reporthub/internal/reports"
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

	svc := reports.NewService(reportsRepo, artifactsRepo, log)

	router := httpx.NewRouter(log, httpx.RouterDeps{
		Service:      svc,
		Pool:         pool,
		Prom:         prom,
		Gatherer:     reg,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
