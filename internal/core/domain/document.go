package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	KindQuote   DocumentKind = "quote"
	KindInvoice DocumentKind = "invoice"
)

// NumberPrefix is the leading letter of human-readable document numbers,
// e.g. D-ACME-001 for quotes and F-ACME-001 for invoices.
func (k DocumentKind) NumberPrefix() string {
	if k == KindInvoice {
		return "F"
	}
	return "D"
}

func (k DocumentKind) Valid() bool {
	return k == KindQuote || k == KindInvoice
}

type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusSent      DocumentStatus = "sent"
	StatusViewed    DocumentStatus = "viewed"
	StatusAccepted  DocumentStatus = "accepted"
	StatusExpired   DocumentStatus = "expired"
	StatusPaid      DocumentStatus = "paid"
	StatusCancelled DocumentStatus = "cancelled"
)

type BillingMode string

const (
	BillingFixed  BillingMode = "fixed"
	BillingHourly BillingMode = "hourly"
)

// TaxPolicy is the pair of tax rates frozen onto a document at creation
// time. Rates are percentages (5 means 5%), never re-read from studio
// defaults after creation.
type TaxPolicy struct {
	Rate1 decimal.Decimal `json:"rate1"`
	Rate2 decimal.Decimal `json:"rate2"`
}

type Item struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	SectionID   string `json:"section_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	BillingMode BillingMode     `json:"billing_mode"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Hours       decimal.Decimal `json:"hours"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`

	IncludeInTotal bool `json:"include_in_total"`
	IsSelected     bool `json:"is_selected"`
	SortOrder      int  `json:"sort_order"`

	// Total is derived from the billing-mode inputs and recomputed on
	// every mutation, never stored independently of them.
	Total decimal.Decimal `json:"total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeTotal derives the line total from the billing-mode inputs.
// Unset numeric inputs are zero, so the result is always defined.
func (it *Item) RecomputeTotal() {
	switch it.BillingMode {
	case BillingHourly:
		it.Total = it.Hours.Mul(it.HourlyRate)
	default:
		it.Total = it.Quantity.Mul(it.UnitPrice)
	}
}

type Section struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`

	// SectionNumber is a display label; SortOrder controls iteration
	// order. The two are independent.
	SectionNumber int `json:"section_number"`
	SortOrder     int `json:"sort_order"`

	Items []Item `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Document struct {
	ID        string       `json:"id"`
	Kind      DocumentKind `json:"kind"`
	ProjectID string       `json:"project_id"`
	ClientID  string       `json:"client_id"`

	Number string         `json:"number"`
	Status DocumentStatus `json:"status"`

	Taxes TaxPolicy `json:"taxes"`

	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxAmount1 decimal.Decimal `json:"tax_amount1"`
	TaxAmount2 decimal.Decimal `json:"tax_amount2"`
	Total      decimal.Decimal `json:"total"`

	DiscountAmount decimal.Decimal `json:"discount_amount"`
	LateFeeAmount  decimal.Decimal `json:"late_fee_amount"`

	PublicToken string     `json:"public_token,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`

	Title          string          `json:"title,omitempty"`
	CoverNote      string          `json:"cover_note,omitempty"`
	PaymentTerms   string          `json:"payment_terms,omitempty"`
	DepositPercent decimal.Decimal `json:"deposit_percent"`

	// Quotes group items into Sections; invoice items are a flat list.
	Sections []Section `json:"sections,omitempty"`
	Items    []Item    `json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AllItems flattens the tree regardless of kind.
func (d *Document) AllItems() []Item {
	if d.Kind == KindInvoice {
		return d.Items
	}
	var items []Item
	for _, s := range d.Sections {
		items = append(items, s.Items...)
	}
	return items
}

// Locked reports whether the document reached a terminal financial
// state in which the pricing tree must not change.
func (d *Document) Locked() bool {
	return IsLockedStatus(d.Kind, d.Status)
}

// Recalculate rewrites the derived totals columns from the current tree.
func (d *Document) Recalculate() {
	totals := CalculateTotals(d.Kind, d.AllItems(), d.Taxes, Adjustments{
		Discount: d.DiscountAmount,
		LateFee:  d.LateFeeAmount,
	})
	d.Subtotal = totals.Subtotal
	d.TaxAmount1 = totals.TaxAmount1
	d.TaxAmount2 = totals.TaxAmount2
	d.Total = totals.Total
}

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

type Project struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is the fire-and-forget payload handed to the sink when a
// lifecycle transition is externally visible.
type Notification struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Link        string `json:"link"`
	RelatedID   string `json:"related_id"`
	RelatedType string `json:"related_type"`
}
