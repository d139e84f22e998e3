package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS reports (
	id              UUID PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	type            TEXT NOT NULL,
	params          JSONB NOT NULL,
	state           TEXT NOT NULL,
	attempts        INT NOT NULL DEFAULT 0,
	idempotency_key TEXT,
	locked_at       TIMESTAMPTZ,
	locked_by       TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT reports_idempotency_key_key UNIQUE (idempotency_key)
);

CREATE INDEX IF NOT EXISTS idx_reports_tenant_state ON reports (tenant_id, state);
CREATE INDEX IF NOT EXISTS idx_reports_state_locked_at ON reports (state, locked_at);

CREATE TABLE IF NOT EXISTS report_artifacts (
	id           UUID PRIMARY KEY,
	report_id    UUID NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	content_type TEXT NOT NULL,
	content      BYTEA NOT NULL,
	size_bytes   BIGINT NOT NULL,
	checksum     TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT report_artifacts_report_id_key UNIQUE (report_id)
);

CREATE TABLE IF NOT EXISTS report_executions (
	id          UUID PRIMARY KEY,
	report_id   UUID NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	attempt     INT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at TIMESTAMPTZ,
	error       TEXT
);

CREATE INDEX IF NOT EXISTS idx_report_executions_report_id ON report_executions (report_id);
`

// EnsureSchema is idempotent; both entrypoints call it so either can come up
// first against a fresh database.

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}
