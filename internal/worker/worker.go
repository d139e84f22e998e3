package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/geocoder89/reporthub/internal/domain/report"
	"github.com/geocoder89/reporthub/internal/observability"
	"github.com/geocoder89/reporthub/internal/producer"
)

// ReportsStore is the slice of the reports repo the worker drives.

type ReportsStore interface {
	ClaimNext(ctx context.Context, workerID string, staleCutoff time.Time) (report.Report, error)
	MarkCompleted(ctx context.Context, id string, attempts int) error
	MarkFailed(ctx context.Context, id string, attempts int) error
	ResetForRetry(ctx context.Context, id string, attempts int) error
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type ArtifactsStore interface {
	Insert(ctx context.Context, a report.Artifact) error
}

type ExecutionsStore interface {
	Create(ctx context.Context, reportID string, attempt int) (report.Execution, error)
	Close(ctx context.Context, id string, execErr *string) error
}

type Producer interface {
	Generate(ctx context.Context, typ report.Type, params report.Params) (producer.Output, error)
}

type Config struct {
	PollInterval     time.Duration
	StaleLockTimeout time.Duration
	MaxAttempts      int
	WorkerID         string
	// RecoverEvery n ticks (in expectation); 0 disables periodic recovery.
	RecoverEvery int
}

type Worker struct {
	cfg       Config
	reports   ReportsStore
	artifacts ArtifactsStore
	execs     ExecutionsStore
	producer  Producer
	log       *slog.Logger
	metrics   *observability.ReportMetrics
	prom      *observability.Prom

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, reports ReportsStore, artifacts ArtifactsStore, execs ExecutionsStore, prod Producer, log *slog.Logger, metrics *observability.ReportMetrics, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	if cfg.StaleLockTimeout <= 0 {
		cfg.StaleLockTimeout = 5 * time.Minute
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	if cfg.RecoverEvery < 0 {
		cfg.RecoverEvery = 0
	}

	if metrics == nil {
		metrics = observability.NewReportMetrics()
	}

	return &Worker{
		cfg:       cfg,
		reports:   reports,
		artifacts: artifacts,
		execs:     execs,
		producer:  prod,
		log:       log,
		metrics:   metrics,
		prom:      prom,
	}
}

func (w *Worker) Metrics() *observability.ReportMetrics {
	return w.metrics
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run is the cooperative poll loop: at most one attempt per tick, stale-lease
// recovery once at startup and then on roughly 1-in-RecoverEvery ticks.

func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	w.recoverStale(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal", "worker_id", w.cfg.WorkerID)
			return nil

		case <-ticker.C:
			if w.cfg.RecoverEvery > 0 && rand.Intn(w.cfg.RecoverEvery) == 0 {
				w.recoverStale(ctx)
			}

			_, err := w.ProcessOne(ctx)

			if err != nil {
				w.log.Error("tick failed", "worker_id", w.cfg.WorkerID, "err", err)
			}
		}
	}
}

func (w *Worker) recoverStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.cfg.StaleLockTimeout)

	n, err := w.reports.RequeueStale(ctx, cutoff)

	if err != nil {
		w.log.Error("stale lease recovery failed", "worker_id", w.cfg.WorkerID, "err", err)
		return
	}

	if n > 0 {
		w.metrics.AddRecovered(n)
		w.log.Info("recovered stale leases", "worker_id", w.cfg.WorkerID, "count", n)
	}
}
