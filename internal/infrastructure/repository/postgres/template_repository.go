package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *domain.Template) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO templates (id, name, description, cover_note, payment_terms, deposit_percent, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, tpl.ID, tpl.Name, tpl.Description, tpl.CoverNote, tpl.PaymentTerms,
		tpl.DepositPercent.String(), tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		return mapConflict("insert template", err)
	}

	for i := range tpl.Sections {
		sec := &tpl.Sections[i]
		_, err = tx.ExecContext(ctx, `
INSERT INTO template_sections (id, template_id, name, section_number, sort_order)
VALUES ($1,$2,$3,$4,$5)
`, sec.ID, tpl.ID, sec.Name, sec.SectionNumber, sec.SortOrder)
		if err != nil {
			return fmt.Errorf("insert template section: %w", err)
		}
		for j := range sec.Items {
			it := &sec.Items[j]
			_, err = tx.ExecContext(ctx, `
INSERT INTO template_items (
	id, section_id, name, description, billing_mode,
	quantity, unit_price, hours, hourly_rate, include_in_total, sort_order
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`, it.ID, sec.ID, it.Name, it.Description, string(it.BillingMode),
				it.Quantity.String(), it.UnitPrice.String(), it.Hours.String(), it.HourlyRate.String(),
				it.IncludeInTotal, it.SortOrder)
			if err != nil {
				return fmt.Errorf("insert template item: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template tx: %w", err)
	}
	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	var tpl domain.Template
	var deposit string
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, description, cover_note, payment_terms, deposit_percent, created_at, updated_at
FROM templates WHERE id = $1
`, id).Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.CoverNote, &tpl.PaymentTerms,
		&deposit, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get template", fmt.Errorf("template %s", id))
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tpl.DepositPercent, err = decimal.NewFromString(deposit); err != nil {
		return nil, fmt.Errorf("parse deposit percent: %w", err)
	}
	if err := r.loadSections(ctx, &tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepository) loadSections(ctx context.Context, tpl *domain.Template) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, template_id, name, section_number, sort_order
FROM template_sections WHERE template_id = $1 ORDER BY sort_order, id
`, tpl.ID)
	if err != nil {
		return fmt.Errorf("load template sections: %w", err)
	}
	defer rows.Close()

	sectionIndex := map[string]int{}
	for rows.Next() {
		var sec domain.TemplateSection
		if err := rows.Scan(&sec.ID, &sec.TemplateID, &sec.Name, &sec.SectionNumber, &sec.SortOrder); err != nil {
			return fmt.Errorf("scan template section: %w", err)
		}
		sectionIndex[sec.ID] = len(tpl.Sections)
		tpl.Sections = append(tpl.Sections, sec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate template sections: %w", err)
	}
	if len(tpl.Sections) == 0 {
		return nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
SELECT i.id, i.section_id, i.name, i.description, i.billing_mode,
	i.quantity, i.unit_price, i.hours, i.hourly_rate, i.include_in_total, i.sort_order
FROM template_items i
JOIN template_sections s ON s.id = i.section_id
WHERE s.template_id = $1
ORDER BY i.sort_order, i.id
`, tpl.ID)
	if err != nil {
		return fmt.Errorf("load template items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it domain.TemplateItem
		var mode, quantity, unitPrice, hours, hourlyRate string
		if err := itemRows.Scan(&it.ID, &it.SectionID, &it.Name, &it.Description, &mode,
			&quantity, &unitPrice, &hours, &hourlyRate, &it.IncludeInTotal, &it.SortOrder); err != nil {
			return fmt.Errorf("scan template item: %w", err)
		}
		it.BillingMode = domain.BillingMode(mode)
		if err := parseDecimals([]decimalField{
			{quantity, &it.Quantity}, {unitPrice, &it.UnitPrice},
			{hours, &it.Hours}, {hourlyRate, &it.HourlyRate},
		}); err != nil {
			return fmt.Errorf("parse template item numerics: %w", err)
		}
		idx, ok := sectionIndex[it.SectionID]
		if !ok {
			return fmt.Errorf("template item %s references unknown section %s", it.ID, it.SectionID)
		}
		tpl.Sections[idx].Items = append(tpl.Sections[idx].Items, it)
	}
	return itemRows.Err()
}

// List returns template heads without their trees.
func (r *TemplateRepository) List(ctx context.Context) ([]domain.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, description, cover_note, payment_terms, deposit_percent, created_at, updated_at
FROM templates ORDER BY name
`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		var tpl domain.Template
		var deposit string
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.CoverNote, &tpl.PaymentTerms,
			&deposit, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if tpl.DepositPercent, err = decimal.NewFromString(deposit); err != nil {
			return nil, fmt.Errorf("parse deposit percent: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete template rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete template", fmt.Errorf("template %s", id))
	}
	return nil
}
