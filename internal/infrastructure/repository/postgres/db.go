package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema bootstraps the billing schema. The advisory lock
// serializes DDL across concurrently starting instances.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS clients (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL REFERENCES clients(id),
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	project_id TEXT NOT NULL REFERENCES projects(id),
	client_id TEXT NOT NULL REFERENCES clients(id),
	number TEXT NOT NULL,
	status TEXT NOT NULL,
	tax_rate1 NUMERIC NOT NULL DEFAULT 0,
	tax_rate2 NUMERIC NOT NULL DEFAULT 0,
	subtotal NUMERIC NOT NULL DEFAULT 0,
	tax_amount1 NUMERIC NOT NULL DEFAULT 0,
	tax_amount2 NUMERIC NOT NULL DEFAULT 0,
	total NUMERIC NOT NULL DEFAULT 0,
	discount_amount NUMERIC NOT NULL DEFAULT 0,
	late_fee_amount NUMERIC NOT NULL DEFAULT 0,
	public_token TEXT,
	valid_until TIMESTAMPTZ,
	title TEXT NOT NULL DEFAULT '',
	cover_note TEXT NOT NULL DEFAULT '',
	payment_terms TEXT NOT NULL DEFAULT '',
	deposit_percent NUMERIC NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_kind_number ON documents(kind, number);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_public_token
	ON documents(public_token) WHERE public_token IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id);

CREATE TABLE IF NOT EXISTS sections (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	section_number INTEGER NOT NULL DEFAULT 1,
	sort_order INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id);

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	section_id TEXT REFERENCES sections(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	billing_mode TEXT NOT NULL,
	quantity NUMERIC NOT NULL DEFAULT 0,
	unit_price NUMERIC NOT NULL DEFAULT 0,
	hours NUMERIC NOT NULL DEFAULT 0,
	hourly_rate NUMERIC NOT NULL DEFAULT 0,
	include_in_total BOOLEAN NOT NULL DEFAULT TRUE,
	is_selected BOOLEAN NOT NULL DEFAULT FALSE,
	sort_order INTEGER NOT NULL DEFAULT 0,
	total NUMERIC NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_document ON items(document_id);
CREATE INDEX IF NOT EXISTS idx_items_section ON items(section_id);

CREATE TABLE IF NOT EXISTS templates (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	cover_note TEXT NOT NULL DEFAULT '',
	payment_terms TEXT NOT NULL DEFAULT '',
	deposit_percent NUMERIC NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS template_sections (
	id TEXT PRIMARY KEY,
	template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	section_number INTEGER NOT NULL DEFAULT 1,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS template_items (
	id TEXT PRIMARY KEY,
	section_id TEXT NOT NULL REFERENCES template_sections(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	billing_mode TEXT NOT NULL,
	quantity NUMERIC NOT NULL DEFAULT 0,
	unit_price NUMERIC NOT NULL DEFAULT 0,
	hours NUMERIC NOT NULL DEFAULT 0,
	hourly_rate NUMERIC NOT NULL DEFAULT 0,
	include_in_total BOOLEAN NOT NULL DEFAULT TRUE,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS document_sequences (
	kind TEXT NOT NULL,
	client_code TEXT NOT NULL,
	last_value BIGINT NOT NULL,
	PRIMARY KEY (kind, client_code)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether the error is a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func mapConflict(operation string, err error) error {
	if isUniqueViolation(err) {
		return domain.WrapError(domain.ErrConflict, operation, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
