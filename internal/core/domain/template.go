package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Template is a detached document tree reusable to seed new quotes. It
// carries no number, status, or public token.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	CoverNote      string          `json:"cover_note,omitempty"`
	PaymentTerms   string          `json:"payment_terms,omitempty"`
	DepositPercent decimal.Decimal `json:"deposit_percent"`

	Sections []TemplateSection `json:"sections"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TemplateSection struct {
	ID            string         `json:"id"`
	TemplateID    string         `json:"template_id"`
	Name          string         `json:"name"`
	SectionNumber int            `json:"section_number"`
	SortOrder     int            `json:"sort_order"`
	Items         []TemplateItem `json:"items"`
}

type TemplateItem struct {
	ID          string `json:"id"`
	SectionID   string `json:"section_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	BillingMode BillingMode     `json:"billing_mode"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Hours       decimal.Decimal `json:"hours"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`

	IncludeInTotal bool `json:"include_in_total"`
	SortOrder      int  `json:"sort_order"`
}

// CaptureTemplate deep-copies a document tree into a detached template.
// Ids are dropped (the caller assigns fresh ones on persist), sort order
// is preserved, and runtime fields like IsSelected reset to defaults.
func CaptureTemplate(doc *Document, name, description string) *Template {
	tpl := &Template{
		Name:           name,
		Description:    description,
		CoverNote:      doc.CoverNote,
		PaymentTerms:   doc.PaymentTerms,
		DepositPercent: doc.DepositPercent,
	}
	for _, sec := range doc.Sections {
		tsec := TemplateSection{
			Name:          sec.Name,
			SectionNumber: sec.SectionNumber,
			SortOrder:     sec.SortOrder,
		}
		for _, it := range sec.Items {
			tsec.Items = append(tsec.Items, TemplateItem{
				Name:           it.Name,
				Description:    it.Description,
				BillingMode:    it.BillingMode,
				Quantity:       it.Quantity,
				UnitPrice:      it.UnitPrice,
				Hours:          it.Hours,
				HourlyRate:     it.HourlyRate,
				IncludeInTotal: it.IncludeInTotal,
				SortOrder:      it.SortOrder,
			})
		}
		tpl.Sections = append(tpl.Sections, tsec)
	}
	return tpl
}

// MaterializeSections deep-copies the template tree into sections ready
// to attach to a fresh quote. Section numbers are relabeled 1..N in sort
// order; item totals are recomputed from their inputs.
func (t *Template) MaterializeSections() []Section {
	ordered := make([]TemplateSection, len(t.Sections))
	copy(ordered, t.Sections)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortOrder < ordered[j].SortOrder
	})

	sections := make([]Section, 0, len(ordered))
	for n, tsec := range ordered {
		sec := Section{
			Name:          tsec.Name,
			SectionNumber: n + 1,
			SortOrder:     tsec.SortOrder,
		}
		for _, tit := range tsec.Items {
			item := Item{
				Name:           tit.Name,
				Description:    tit.Description,
				BillingMode:    tit.BillingMode,
				Quantity:       tit.Quantity,
				UnitPrice:      tit.UnitPrice,
				Hours:          tit.Hours,
				HourlyRate:     tit.HourlyRate,
				IncludeInTotal: tit.IncludeInTotal,
				SortOrder:      tit.SortOrder,
			}
			item.RecomputeTotal()
			sec.Items = append(sec.Items, item)
		}
		sections = append(sections, sec)
	}
	return sections
}

// CloneTree deep-copies a document's sections and items for duplication.
// Ids are dropped so the persistence layer assigns fresh ones.
func CloneTree(doc *Document) ([]Section, []Item) {
	var sections []Section
	for _, sec := range doc.Sections {
		clone := Section{
			Name:          sec.Name,
			SectionNumber: sec.SectionNumber,
			SortOrder:     sec.SortOrder,
		}
		for _, it := range sec.Items {
			item := it
			item.ID = ""
			item.DocumentID = ""
			item.SectionID = ""
			item.RecomputeTotal()
			clone.Items = append(clone.Items, item)
		}
		sections = append(sections, clone)
	}

	var items []Item
	for _, it := range doc.Items {
		item := it
		item.ID = ""
		item.DocumentID = ""
		item.SectionID = ""
		item.RecomputeTotal()
		items = append(items, item)
	}
	return sections, items
}
