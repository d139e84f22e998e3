package postgres

import (
	"context"
	"time"

	"github.com/geocoder89/reporthub/internal/domain/report"
	"github.com/geocoder89/reporthub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExecutionsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewExecutionsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ExecutionsRepo {
	return &ExecutionsRepo{pool: pool, prom: prom}
}

func (r *ExecutionsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *ExecutionsRepo) Create(ctx context.Context, reportID string, attempt int) (report.Execution, error) {
	e := report.Execution{
		ID:        uuid.NewString(),
		ReportID:  reportID,
		Attempt:   attempt,
		StartedAt: time.Now().UTC(),
	}

	op := "executions.create"

	err := r.observe(op, func() error {
		_, err := r.pool.Exec(ctx, `INSERT INTO report_executions(
	 id, report_id, attempt, started_at
	 ) VALUES (
		$1,$2,$3,$4
	 )
	 `, e.ID, e.ReportID, e.Attempt, e.StartedAt)

		return err
	})

	if err != nil {
		return report.Execution{}, err
	}

	return e, nil
}

// Close stamps finished_at and the error, if any. A crashed worker leaves the
// row dangling; that is acceptable audit residue.

func (r *ExecutionsRepo) Close(ctx context.Context, id string, execErr *string) error {
	op := "executions.close"

	return r.observe(op, func() error {
		_, err := r.pool.Exec(ctx, `
		UPDATE report_executions
		SET finished_at = NOW(),
		    error = $2
		WHERE id = $1
	`, id, execErr)
		return err
	})
}
