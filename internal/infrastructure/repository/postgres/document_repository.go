package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const documentColumns = `id, kind, project_id, client_id, number, status,
	tax_rate1, tax_rate2, subtotal, tax_amount1, tax_amount2, total,
	discount_amount, late_fee_amount, public_token, valid_until,
	title, cover_note, payment_terms, deposit_percent, created_at, updated_at`

// Create persists a new document and its tree. An empty Number is
// allocated from the (kind, client code) sequence inside the same
// transaction, so the number and the row commit or fail together.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if doc.Number == "" {
		number, err := r.allocateNumber(ctx, tx, doc.Kind, doc.ClientID)
		if err != nil {
			return err
		}
		doc.Number = number
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (
	id, kind, project_id, client_id, number, status,
	tax_rate1, tax_rate2, subtotal, tax_amount1, tax_amount2, total,
	discount_amount, late_fee_amount, public_token, valid_until,
	title, cover_note, payment_terms, deposit_percent, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
`,
		doc.ID, string(doc.Kind), doc.ProjectID, doc.ClientID, doc.Number, string(doc.Status),
		doc.Taxes.Rate1.String(), doc.Taxes.Rate2.String(),
		doc.Subtotal.String(), doc.TaxAmount1.String(), doc.TaxAmount2.String(), doc.Total.String(),
		doc.DiscountAmount.String(), doc.LateFeeAmount.String(),
		nullString(doc.PublicToken), nullTime(doc.ValidUntil),
		doc.Title, doc.CoverNote, doc.PaymentTerms, doc.DepositPercent.String(),
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return mapConflict("insert document", err)
	}

	if err := insertTree(ctx, tx, doc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

// allocateNumber bumps the atomic counter row for the namespace,
// seeding it from the highest existing numeric suffix so historical
// documents created before the counter existed are respected.
func (r *DocumentRepository) allocateNumber(ctx context.Context, tx *sql.Tx, kind domain.DocumentKind, clientID string) (string, error) {
	var code string
	err := tx.QueryRowContext(ctx, `SELECT code FROM clients WHERE id = $1`, clientID).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, "allocate number",
				fmt.Errorf("client %s", clientID))
		}
		return "", fmt.Errorf("resolve client code: %w", err)
	}

	prefix := kind.NumberPrefix() + "-" + code + "-"
	var lastValue int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO document_sequences (kind, client_code, last_value)
VALUES ($1, $2, COALESCE((
	SELECT MAX(substring(number FROM '([0-9]+)$')::bigint)
	FROM documents
	WHERE kind = $1 AND number LIKE $3 || '%'
), 0) + 1)
ON CONFLICT (kind, client_code)
DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value
`, string(kind), code, prefix).Scan(&lastValue)
	if err != nil {
		return "", fmt.Errorf("bump document sequence: %w", err)
	}

	return domain.FormatNumber(kind, code, lastValue), nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

func (r *DocumentRepository) GetByPublicToken(ctx context.Context, token string) (*domain.Document, error) {
	return r.getBy(ctx, `WHERE public_token = $1`, token)
}

func (r *DocumentRepository) getBy(ctx context.Context, where string, arg any) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents `+where, arg)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document",
				fmt.Errorf("document %v", arg))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if err := loadTree(ctx, r.db, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListByProject returns document heads without their trees.
func (r *DocumentRepository) ListByProject(ctx context.Context, projectID string, kind domain.DocumentKind) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE project_id = $1`
	args := []any{projectID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

// Delete removes the document; sections and items go with it via
// ON DELETE CASCADE.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete document", fmt.Errorf("document %s", id))
	}
	return nil
}

// Mutate runs fn against the full tree under a row lock. Concurrent
// mutations of the same document serialize on the FOR UPDATE lock;
// unrelated documents proceed in parallel.
func (r *DocumentRepository) Mutate(ctx context.Context, id string, fn func(doc *domain.Document) error) (*domain.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mutate tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "mutate document",
				fmt.Errorf("document %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if err := loadTree(ctx, tx, doc); err != nil {
		return nil, err
	}

	if err := fn(doc); err != nil {
		return nil, err
	}
	doc.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
UPDATE documents SET
	status = $2, subtotal = $3, tax_amount1 = $4, tax_amount2 = $5, total = $6,
	discount_amount = $7, late_fee_amount = $8, public_token = $9, valid_until = $10,
	title = $11, cover_note = $12, payment_terms = $13, deposit_percent = $14, updated_at = $15
WHERE id = $1
`,
		doc.ID, string(doc.Status),
		doc.Subtotal.String(), doc.TaxAmount1.String(), doc.TaxAmount2.String(), doc.Total.String(),
		doc.DiscountAmount.String(), doc.LateFeeAmount.String(),
		nullString(doc.PublicToken), nullTime(doc.ValidUntil),
		doc.Title, doc.CoverNote, doc.PaymentTerms, doc.DepositPercent.String(), doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	// The tree is rewritten wholesale: items first (FK on sections),
	// then sections, then the current in-memory state goes back in.
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE document_id = $1`, doc.ID); err != nil {
		return nil, fmt.Errorf("clear items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE document_id = $1`, doc.ID); err != nil {
		return nil, fmt.Errorf("clear sections: %w", err)
	}
	if err := insertTree(ctx, tx, doc); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mutate tx: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) DocumentIDByItem(ctx context.Context, itemID string) (string, error) {
	var documentID string
	err := r.db.QueryRowContext(ctx, `SELECT document_id FROM items WHERE id = $1`, itemID).Scan(&documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, "locate item", fmt.Errorf("item %s", itemID))
		}
		return "", fmt.Errorf("locate item: %w", err)
	}
	return documentID, nil
}

func (r *DocumentRepository) DocumentIDBySection(ctx context.Context, sectionID string) (string, error) {
	var documentID string
	err := r.db.QueryRowContext(ctx, `SELECT document_id FROM sections WHERE id = $1`, sectionID).Scan(&documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, "locate section", fmt.Errorf("section %s", sectionID))
		}
		return "", fmt.Errorf("locate section: %w", err)
	}
	return documentID, nil
}

func insertTree(ctx context.Context, q querier, doc *domain.Document) error {
	for i := range doc.Sections {
		sec := &doc.Sections[i]
		_, err := q.ExecContext(ctx, `
INSERT INTO sections (id, document_id, name, section_number, sort_order, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, sec.ID, doc.ID, sec.Name, sec.SectionNumber, sec.SortOrder, sec.CreatedAt, sec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
		for j := range sec.Items {
			if err := insertItem(ctx, q, doc.ID, sec.ID, &sec.Items[j]); err != nil {
				return err
			}
		}
	}
	for i := range doc.Items {
		if err := insertItem(ctx, q, doc.ID, "", &doc.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertItem(ctx context.Context, q querier, documentID, sectionID string, item *domain.Item) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO items (
	id, document_id, section_id, name, description, billing_mode,
	quantity, unit_price, hours, hourly_rate,
	include_in_total, is_selected, sort_order, total, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		item.ID, documentID, nullString(sectionID), item.Name, item.Description, string(item.BillingMode),
		item.Quantity.String(), item.UnitPrice.String(), item.Hours.String(), item.HourlyRate.String(),
		item.IncludeInTotal, item.IsSelected, item.SortOrder, item.Total.String(),
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func loadTree(ctx context.Context, q querier, doc *domain.Document) error {
	rows, err := q.QueryContext(ctx, `
SELECT id, document_id, name, section_number, sort_order, created_at, updated_at
FROM sections WHERE document_id = $1 ORDER BY sort_order, id
`, doc.ID)
	if err != nil {
		return fmt.Errorf("load sections: %w", err)
	}
	defer rows.Close()

	sectionIndex := map[string]int{}
	for rows.Next() {
		var sec domain.Section
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Name, &sec.SectionNumber,
			&sec.SortOrder, &sec.CreatedAt, &sec.UpdatedAt); err != nil {
			return fmt.Errorf("scan section: %w", err)
		}
		sectionIndex[sec.ID] = len(doc.Sections)
		doc.Sections = append(doc.Sections, sec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate sections: %w", err)
	}

	itemRows, err := q.QueryContext(ctx, `
SELECT id, document_id, section_id, name, description, billing_mode,
	quantity, unit_price, hours, hourly_rate,
	include_in_total, is_selected, sort_order, total, created_at, updated_at
FROM items WHERE document_id = $1 ORDER BY sort_order, id
`, doc.ID)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.Item
		var sectionID sql.NullString
		var quantity, unitPrice, hours, hourlyRate, total string
		var mode string
		if err := itemRows.Scan(&item.ID, &item.DocumentID, &sectionID, &item.Name, &item.Description, &mode,
			&quantity, &unitPrice, &hours, &hourlyRate,
			&item.IncludeInTotal, &item.IsSelected, &item.SortOrder, &total,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		item.BillingMode = domain.BillingMode(mode)
		if err := parseDecimals([]decimalField{
			{quantity, &item.Quantity}, {unitPrice, &item.UnitPrice},
			{hours, &item.Hours}, {hourlyRate, &item.HourlyRate}, {total, &item.Total},
		}); err != nil {
			return fmt.Errorf("parse item numerics: %w", err)
		}

		if sectionID.Valid {
			item.SectionID = sectionID.String
			idx, ok := sectionIndex[sectionID.String]
			if !ok {
				return fmt.Errorf("item %s references unknown section %s", item.ID, sectionID.String)
			}
			doc.Sections[idx].Items = append(doc.Sections[idx].Items, item)
			continue
		}
		doc.Items = append(doc.Items, item)
	}
	return itemRows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var kind, status string
	var rate1, rate2, subtotal, tax1, tax2, total, discount, lateFee, deposit string
	var token sql.NullString
	var validUntil sql.NullTime

	err := row.Scan(
		&doc.ID, &kind, &doc.ProjectID, &doc.ClientID, &doc.Number, &status,
		&rate1, &rate2, &subtotal, &tax1, &tax2, &total,
		&discount, &lateFee, &token, &validUntil,
		&doc.Title, &doc.CoverNote, &doc.PaymentTerms, &deposit,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Kind = domain.DocumentKind(kind)
	doc.Status = domain.DocumentStatus(status)
	if token.Valid {
		doc.PublicToken = token.String
	}
	if validUntil.Valid {
		t := validUntil.Time
		doc.ValidUntil = &t
	}
	if err := parseDecimals([]decimalField{
		{rate1, &doc.Taxes.Rate1}, {rate2, &doc.Taxes.Rate2},
		{subtotal, &doc.Subtotal}, {tax1, &doc.TaxAmount1}, {tax2, &doc.TaxAmount2},
		{total, &doc.Total}, {discount, &doc.DiscountAmount}, {lateFee, &doc.LateFeeAmount},
		{deposit, &doc.DepositPercent},
	}); err != nil {
		return nil, fmt.Errorf("parse document numerics: %w", err)
	}
	return &doc, nil
}

type decimalField struct {
	raw    string
	target *decimal.Decimal
}

func parseDecimals(fields []decimalField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", f.raw, err)
		}
		*f.target = d
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
