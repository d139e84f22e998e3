package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/reporthub/internal/domain/report"
	"github.com/geocoder89/reporthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ArtifactsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewArtifactsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ArtifactsRepo {
	return &ArtifactsRepo{pool: pool, prom: prom}
}

func (r *ArtifactsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Insert is the convergence point: the UNIQUE(report_id) constraint rejects a
// second artifact for the same report, and the unique violation comes back to
// the caller untouched.

func (r *ArtifactsRepo) Insert(ctx context.Context, a report.Artifact) error {
	op := "artifacts.insert"

	return r.observe(op, func() error {
		_, err := r.pool.Exec(ctx, `INSERT INTO report_artifacts(
	 id, report_id, content_type, content, size_bytes, checksum, created_at
	 ) VALUES (
		$1,$2,$3,$4,$5,$6,$7
	 )
	 `, a.ID, a.ReportID, a.ContentType, a.Content, a.SizeBytes, a.Checksum, a.CreatedAt)

		return err
	})
}

func (r *ArtifactsRepo) GetByReportID(ctx context.Context, reportID string) (report.Artifact, error) {
	var a report.Artifact
	var err error
	op := "artifacts.get_by_report_id"

	err = r.observe(op, func() error {
		return r.pool.QueryRow(ctx, `
		SELECT id, report_id, content_type, content, size_bytes, checksum, created_at
		FROM report_artifacts
		WHERE report_id = $1
	`, reportID).Scan(
			&a.ID, &a.ReportID, &a.ContentType, &a.Content, &a.SizeBytes, &a.Checksum, &a.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.Artifact{}, report.ErrArtifactNotFound
		}
		return report.Artifact{}, err
	}

	return a, nil
}

// GetMetaByReportID skips the content column so status reads stay cheap.

func (r *ArtifactsRepo) GetMetaByReportID(ctx context.Context, reportID string) (report.ArtifactMeta, error) {
	var m report.ArtifactMeta
	var err error
	op := "artifacts.get_meta_by_report_id"

	err = r.observe(op, func() error {
		return r.pool.QueryRow(ctx, `
		SELECT id, content_type, size_bytes, checksum, created_at
		FROM report_artifacts
		WHERE report_id = $1
	`, reportID).Scan(
			&m.ID, &m.ContentType, &m.SizeBytes, &m.Checksum, &m.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.ArtifactMeta{}, report.ErrArtifactNotFound
		}
		return report.ArtifactMeta{}, err
	}

	return m, nil
}
