package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/reporthub/internal/domain/report"
	"github.com/geocoder89/reporthub/internal/observability"
	"github.com/geocoder89/reporthub/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportColumns = `id, tenant_id, type, params, state,
		       attempts, idempotency_key,
		       locked_at, locked_by,
		       created_at, updated_at`

type ReportsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewReportsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ReportsRepo {
	return &ReportsRepo{pool: pool, prom: prom}
}

func (r *ReportsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanReport(row pgx.Row) (report.Report, error) {
	var rep report.Report
	var state string

	err := row.Scan(
		&rep.ID, &rep.TenantID, &rep.Type, &rep.Params, &state,
		&rep.Attempts, &rep.IdempotencyKey,
		&rep.LockedAt, &rep.LockedBy,
		&rep.CreatedAt, &rep.UpdatedAt,
	)

	if err != nil {
		return report.Report{}, err
	}

	rep.State = report.State(state)
	return rep, nil
}

func (r *ReportsRepo) Insert(ctx context.Context, rep report.Report) error {
	op := "reports.insert"

	return r.observe(op, func() error {
		_, err := r.pool.Exec(ctx, `INSERT INTO reports(
	 id, tenant_id, type, params, state, attempts, idempotency_key, locked_at, locked_by, created_at, updated_at
	 ) VALUES (
		$1,$2,$3,$4,$5,
		$6,$7,$8,$9,$10,$11
	 )
	 `, rep.ID, rep.TenantID, string(rep.Type), rep.Params, string(rep.State), rep.Attempts, rep.IdempotencyKey, rep.LockedAt, rep.LockedBy, rep.CreatedAt, rep.UpdatedAt)

		return err
	})
}

func (r *ReportsRepo) GetByID(ctx context.Context, id string) (report.Report, error) {
	var rep report.Report
	var err error
	op := "reports.get_by_id"

	err = r.observe(op, func() error {
		rep, err = scanReport(r.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE id = $1
	`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.Report{}, report.ErrNotFound
		}
		return report.Report{}, err
	}

	return rep, nil
}

func (r *ReportsRepo) GetByIdempotencyKey(ctx context.Context, key string) (report.Report, error) {
	var rep report.Report
	var err error
	op := "reports.get_by_idempotency_key"

	err = r.observe(op, func() error {
		rep, err = scanReport(r.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE idempotency_key = $1
	`, key))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.Report{}, report.ErrNotFound
		}
		return report.Report{}, err
	}

	return rep, nil
}

// FindEquivalent looks for an existing COMPLETED or RUNNING report with the
// same (tenant, type, params). JSONB equality ignores key order, so
// semantically identical params payloads match regardless of field order.
// COMPLETED wins over RUNNING, then the most recent.

func (r *ReportsRepo) FindEquivalent(ctx context.Context, tenantID string, typ report.Type, params []byte) (report.Report, error) {
	var rep report.Report
	var err error
	op := "reports.find_equivalent"

	err = r.observe(op, func() error {
		rep, err = scanReport(r.pool.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE tenant_id = $1
		  AND type = $2
		  AND params = $3::jsonb
		  AND state IN ('COMPLETED', 'RUNNING')
		ORDER BY CASE state WHEN 'COMPLETED' THEN 0 ELSE 1 END,
		         created_at DESC
		LIMIT 1
	`, tenantID, string(typ), params))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.Report{}, report.ErrNotFound
		}
		return report.Report{}, err
	}

	return rep, nil
}

// SetIdempotencyKey backfills a key onto a report that has none. A concurrent
// submitter may have taken the key for another row; the unique violation is
// returned for the caller to resolve.

func (r *ReportsRepo) SetIdempotencyKey(ctx context.Context, id, key string) error {
	var tag pgconn.CommandTag
	var err error
	op := "reports.set_idempotency_key"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE reports
		SET idempotency_key = $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND idempotency_key IS NULL
	`, id, key)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return report.ErrNotFound
	}
	return nil
}

// ClaimNext is the single-statement SKIP LOCKED claim. Eligible rows are
// PENDING with no lease or a lease older than the stale cutoff; the oldest
// wins. Rows locked by a concurrent claimer are skipped, not waited on.

func (r *ReportsRepo) ClaimNext(ctx context.Context, workerID string, staleCutoff time.Time) (report.Report, error) {
	var rep report.Report
	var err error
	op := "reports.claim_next"

	err = r.observe(op, func() error {
		rep, err = scanReport(r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM reports
			WHERE state = 'PENDING'
			  AND (locked_at IS NULL OR locked_at < $2)
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE reports
		SET state = 'RUNNING',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING `+reportColumns+`
	`, workerID, staleCutoff))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.Report{}, report.ErrNotFound // nothing claimable
		}
		return report.Report{}, err
	}

	return rep, nil
}

func (r *ReportsRepo) MarkCompleted(ctx context.Context, id string, attempts int) error {
	var tag pgconn.CommandTag
	var err error
	op := "reports.mark_completed"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE reports
		SET state = 'COMPLETED',
		    attempts = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, attempts)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return report.ErrNotFound
	}
	return nil
}

func (r *ReportsRepo) MarkFailed(ctx context.Context, id string, attempts int) error {
	var tag pgconn.CommandTag
	var err error
	op := "reports.mark_failed"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE reports
		SET state = 'FAILED',
		    attempts = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, attempts)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return report.ErrNotFound
	}
	return nil
}

// ResetForRetry returns a failed attempt's report to the queue with the
// incremented attempts counter.

func (r *ReportsRepo) ResetForRetry(ctx context.Context, id string, attempts int) error {
	var tag pgconn.CommandTag
	var err error
	op := "reports.reset_for_retry"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE reports
		SET state = 'PENDING',
		    attempts = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, attempts)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return report.ErrNotFound
	}
	return nil
}

// RequeueStale bulk-resets RUNNING rows whose lease expired before the
// cutoff. Attempts are untouched: the crashed worker never closed its
// attempt.

func (r *ReportsRepo) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var rows int64
	op := "reports.requeue_stale"

	err := r.observe(op, func() error {
		tag, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET state = 'PENDING',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE state = 'RUNNING'
		  AND locked_at IS NOT NULL
		  AND locked_at < $1
	`, cutoff)

		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})

	return rows, err
}

type ListFilter struct {
	State *report.State
	Type  *report.Type
}

func (r *ReportsRepo) ListByTenant(
	ctx context.Context,
	tenantID string,
	filter ListFilter,
	limit int,
	after *utils.ReportCursor,
) (items []report.Report, nextCursor *string, hasMore bool, err error) {
	op := "reports.list_by_tenant"

	base := `
		SELECT ` + reportColumns + `
		FROM reports
	`

	var (
		conds   []string
		args    []any
		argsPos = 1
	)

	conds = append(conds, fmt.Sprintf("tenant_id = $%d", argsPos))
	args = append(args, tenantID)
	argsPos++

	if filter.State != nil {
		conds = append(conds, fmt.Sprintf("state = $%d", argsPos))
		args = append(args, string(*filter.State))
		argsPos++
	}

	if filter.Type != nil {
		conds = append(conds, fmt.Sprintf("type = $%d", argsPos))
		args = append(args, string(*filter.Type))
		argsPos++
	}

	// DESC keyset: fetch rows "older" than cursor
	if after != nil {
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argsPos, argsPos+1))
		args = append(args, after.CreatedAt, after.ID)
		argsPos += 2
	}

	q := base + " WHERE " + strings.Join(conds, " AND ")

	limitPlusOne := limit + 1
	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argsPos)
	args = append(args, limitPlusOne)

	var rows pgx.Rows

	err = r.observe(op, func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, q, args...)
		return qerr
	})
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	out := make([]report.Report, 0, limit)

	for rows.Next() {
		rep, scanErr := scanReport(rows)
		if scanErr != nil {
			return nil, nil, false, scanErr
		}
		out = append(out, rep)
	}

	if rows.Err() != nil {
		return nil, nil, false, rows.Err()
	}

	if len(out) > limit {
		hasMore = true
		out = out[:limit]
		last := out[len(out)-1]

		cur, encErr := utils.EncodeReportCursor(last.CreatedAt, last.ID)
		if encErr != nil {
			return nil, nil, false, encErr
		}
		nextCursor = &cur
	}

	return out, nextCursor, hasMore, nil
}

func (r *ReportsRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
