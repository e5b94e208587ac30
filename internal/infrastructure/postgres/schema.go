package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements DDL idempotente del pipeline de envío. El índice parcial sobre
// submission_jobs garantiza como máximo un job activo por comprobante.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS stores (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		ruc           CHAR(11) NOT NULL,
		sol_user      TEXT NOT NULL,
		sol_password  TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'active',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS electronic_documents (
		id                   TEXT PRIMARY KEY,
		store_id             TEXT NOT NULL REFERENCES stores(id),
		doc_type             TEXT NOT NULL,
		series               TEXT NOT NULL,
		number               BIGINT NOT NULL,
		customer_doc_type    TEXT NOT NULL DEFAULT '',
		customer_doc_number  TEXT NOT NULL DEFAULT '',
		customer_name        TEXT NOT NULL DEFAULT '',
		currency             CHAR(3) NOT NULL DEFAULT 'PEN',
		net_total            NUMERIC(14,2) NOT NULL DEFAULT 0,
		tax_total            NUMERIC(14,2) NOT NULL DEFAULT 0,
		grand_total          NUMERIC(14,2) NOT NULL DEFAULT 0,
		signed_body          BYTEA,
		hash                 TEXT,
		ack_container        BYTEA,
		remote_code          TEXT,
		remote_message       TEXT,
		remote_ticket        TEXT,
		remote_responded_at  TIMESTAMPTZ,
		status               TEXT NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (store_id, series, number)
	)`,
	`CREATE TABLE IF NOT EXISTS submission_jobs (
		id                TEXT PRIMARY KEY,
		document_id       TEXT NOT NULL REFERENCES electronic_documents(id),
		store_id          TEXT NOT NULL,
		job_type          TEXT NOT NULL,
		status            TEXT NOT NULL,
		attempts          INT NOT NULL DEFAULT 0,
		last_error        TEXT,
		next_run_at       TIMESTAMPTZ NOT NULL,
		lease_owner       TEXT,
		lease_expires_at  TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at      TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS submission_jobs_one_active
		ON submission_jobs (document_id) WHERE status IN ('QUEUED', 'CLAIMED')`,
	`CREATE INDEX IF NOT EXISTS submission_jobs_claimable
		ON submission_jobs (next_run_at) WHERE status IN ('QUEUED', 'CLAIMED')`,
	`CREATE INDEX IF NOT EXISTS submission_jobs_document
		ON submission_jobs (document_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS submission_audit (
		id           TEXT PRIMARY KEY,
		event_type   TEXT NOT NULL,
		document_id  TEXT NOT NULL,
		job_id       TEXT,
		store_id     TEXT,
		actor        TEXT,
		attempt      INT NOT NULL DEFAULT 0,
		remote_code  TEXT,
		message      TEXT,
		at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS submission_audit_document ON submission_audit (document_id, at)`,
}

// EnsureSchema crea tablas e índices del pipeline si no existen.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema paso %d: %w", i+1, err)
		}
	}
	return nil
}
