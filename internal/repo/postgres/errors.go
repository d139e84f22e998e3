package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint names from schema.sql; callers use them to tell a key collision
// apart from an artifact collision.

const (
	ConstraintIdempotencyKey = "reports_idempotency_key_key"
	ConstraintArtifactReport = "report_artifacts_report_id_key"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

// UniqueConstraint returns the violated constraint name, or "" when the error
// is not a unique violation.

func UniqueConstraint(err error) string {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}
