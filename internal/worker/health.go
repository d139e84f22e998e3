package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler exposes liveness, readiness and metrics for the worker
// process on its own listener.

func (w *Worker) HealthHandler(gatherer prometheus.Gatherer) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())

	// liveness: process is up

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"ok": true,
		})
	})

	// readiness: the poll loop is running; flips false on shutdown

	r.GET("/readyz", func(c *gin.Context) {
		w.readyMu.RLock()
		ready := w.ready
		w.readyMu.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}

		snap := w.metrics.Snapshot()

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"workerId":  w.cfg.WorkerID,
			"claimed":   snap.Claimed,
			"completed": snap.Completed,
			"converged": snap.Converged,
			"retried":   snap.Retried,
			"failed":    snap.Failed,
			"recovered": snap.Recovered,
		})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
