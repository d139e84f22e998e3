package http

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/geocoder89/reporthub/internal/http/handlers"
	"github.com/geocoder89/reporthub/internal/http/middlewares"
	"github.com/geocoder89/reporthub/internal/observability"
	"github.com/geocoder89/reporthub/internal/reports"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Service      *reports.Service
	Pool         *pgxpool.Pool
	Prom         *observability.Prom
	Gatherer     prometheus.Gatherer
	MaxBodyBytes int64
}

func NewRouter(log *slog.Logger, deps RouterDeps) *gin.Engine {
	if os.Getenv("APP_ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.CorrelationID())
	r.Use(middlewares.RequestLogger(log))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	r.Use(middlewares.RequireJSON())

	maxBody := deps.MaxBodyBytes

	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r.Use(middlewares.MaxBodyBytes(maxBody))

	// health
	ping := func() error {
		if deps.Pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return deps.Pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/health", h.Health)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	reportsHandler := handlers.NewReportsHandler(deps.Service)

	r.POST("/reports", reportsHandler.Submit)
	r.GET("/reports/:id", reportsHandler.Get)
	r.GET("/reports/:id/download", reportsHandler.Download)
	r.GET("/tenants/:tenant/reports", reportsHandler.ListByTenant)

	return r
}
