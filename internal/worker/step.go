package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/geocoder89/reporthub/internal/domain/report"
	"github.com/geocoder89/reporthub/internal/repo/postgres"
	"github.com/google/uuid"
)

// ProcessOne performs at most one claim+attempt. The bool reports whether a
// claim happened; (false, nil) means the queue was empty.

func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	cutoff := time.Now().UTC().Add(-w.cfg.StaleLockTimeout)

	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	rep, err := w.reports.ClaimNext(claimCtx, w.cfg.WorkerID, cutoff)
	cancel()

	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			return false, nil
		}

		return false, err
	}

	w.metrics.IncClaimed()
	w.log.Info("claimed report",
		"report_id", rep.ID,
		"worker_id", w.cfg.WorkerID,
		"attempt", rep.Attempts+1,
	)

	w.execute(ctx, rep)

	return true, nil
}

func (w *Worker) execute(ctx context.Context, rep report.Report) {
	start := time.Now()

	if w.prom != nil {
		w.prom.ReportsInFlight.Inc()
		defer w.prom.ReportsInFlight.Dec()
	}

	exec, err := w.execs.Create(ctx, rep.ID, rep.Attempts+1)

	if err != nil {
		// could not even open the attempt; leave the row RUNNING, a peer
		// reclaims it after the lease expires
		w.log.Error("execution open failed", "report_id", rep.ID, "err", err)
		return
	}

	var params report.Params

	if err := json.Unmarshal(rep.Params, &params); err != nil {
		w.fail(ctx, rep, exec, err)
		w.observeResult(rep, "failed", start)
		return
	}

	out, err := w.producer.Generate(ctx, rep.Type, params)

	if err != nil {
		if ctx.Err() != nil {
			// shutdown mid-produce: abandon, stale-lease recovery will
			// return the row to PENDING without burning an attempt
			w.log.Info("attempt abandoned on shutdown", "report_id", rep.ID)
			return
		}

		w.fail(ctx, rep, exec, err)
		w.observeResult(rep, resultLabelForFailure(rep, w.cfg.MaxAttempts), start)
		return
	}

	artifact := report.Artifact{
		ID:          uuid.NewString(),
		ReportID:    rep.ID,
		ContentType: out.ContentType,
		Content:     out.Content,
		SizeBytes:   int64(len(out.Content)),
		Checksum:    out.Checksum,
		CreatedAt:   time.Now().UTC(),
	}

	err = w.artifacts.Insert(ctx, artifact)

	switch {
	case err == nil:
		if err := w.reports.MarkCompleted(ctx, rep.ID, rep.Attempts+1); err != nil {
			w.log.Error("mark completed failed", "report_id", rep.ID, "err", err)
		}

		w.closeExec(ctx, exec, nil)
		w.metrics.IncCompleted()
		w.metrics.ObserveDuration(time.Since(start))
		w.observeResult(rep, "completed", start)
		w.log.Info("report completed",
			"report_id", rep.ID,
			"worker_id", w.cfg.WorkerID,
			"size_bytes", artifact.SizeBytes,
		)

	case postgres.UniqueConstraint(err) == postgres.ConstraintArtifactReport:
		// convergence: a peer already produced the artifact. Complete the
		// report without a second artifact and without counting an attempt.
		if err := w.reports.MarkCompleted(ctx, rep.ID, rep.Attempts); err != nil {
			w.log.Error("mark completed failed", "report_id", rep.ID, "err", err)
		}

		w.closeExec(ctx, exec, nil)
		w.metrics.IncConverged()
		w.observeResult(rep, "converged", start)
		w.log.Info("converged on existing artifact",
			"report_id", rep.ID,
			"worker_id", w.cfg.WorkerID,
		)

	default:
		w.fail(ctx, rep, exec, err)
		w.observeResult(rep, resultLabelForFailure(rep, w.cfg.MaxAttempts), start)
	}
}

// fail runs the retry/max-attempts path and closes the execution with the
// error message.

func (w *Worker) fail(ctx context.Context, rep report.Report, exec report.Execution, cause error) {
	newAttempts := rep.Attempts + 1

	if newAttempts < w.cfg.MaxAttempts {
		if err := w.reports.ResetForRetry(ctx, rep.ID, newAttempts); err != nil {
			w.log.Error("retry reset failed", "report_id", rep.ID, "err", err)
		}

		w.metrics.IncRetried()
		w.log.Warn("attempt failed, retrying",
			"report_id", rep.ID,
			"worker_id", w.cfg.WorkerID,
			"attempt", newAttempts,
			"err", cause,
		)
	} else {
		if err := w.reports.MarkFailed(ctx, rep.ID, newAttempts); err != nil {
			w.log.Error("mark failed failed", "report_id", rep.ID, "err", err)
		}

		w.metrics.IncFailed()
		w.log.Error("report failed permanently",
			"report_id", rep.ID,
			"worker_id", w.cfg.WorkerID,
			"attempts", newAttempts,
			"err", cause,
		)
	}

	msg := cause.Error()
	w.closeExec(ctx, exec, &msg)
}

func (w *Worker) closeExec(ctx context.Context, exec report.Execution, execErr *string) {
	if err := w.execs.Close(ctx, exec.ID, execErr); err != nil {
		w.log.Error("execution close failed", "execution_id", exec.ID, "err", err)
	}
}

func (w *Worker) observeResult(rep report.Report, result string, start time.Time) {
	if w.prom == nil {
		return
	}

	w.prom.ReportResults.WithLabelValues(string(rep.Type), result).Inc()
	w.prom.ReportDuration.WithLabelValues(string(rep.Type), result).Observe(time.Since(start).Seconds())
}

func resultLabelForFailure(rep report.Report, maxAttempts int) string {
	if rep.Attempts+1 < maxAttempts {
		return "retry"
	}
	return "failed"
}
