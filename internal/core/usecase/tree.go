package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
	"github.com/lachapelle/studio-backoffice/internal/core/ports"
)

// TreeUseCase mutates the section/item pricing tree. Every operation is
// one repository transaction: the locked-state guard, the line-total
// recomputation, and the document totals rewrite all happen in the same
// unit of work.
type TreeUseCase struct {
	docs ports.DocumentRepository
}

func NewTreeUseCase(docs ports.DocumentRepository) *TreeUseCase {
	return &TreeUseCase{docs: docs}
}

type ItemInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	BillingMode domain.BillingMode `json:"billing_mode"`

	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Hours      decimal.Decimal `json:"hours"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`

	IncludeInTotal *bool `json:"include_in_total"`
	IsSelected     bool  `json:"is_selected"`
}

type ItemPatch struct {
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	BillingMode *domain.BillingMode `json:"billing_mode"`

	Quantity   *decimal.Decimal `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unit_price"`
	Hours      *decimal.Decimal `json:"hours"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`

	IncludeInTotal *bool `json:"include_in_total"`
	IsSelected     *bool `json:"is_selected"`
}

type SectionPatch struct {
	Name          *string `json:"name"`
	SectionNumber *int    `json:"section_number"`
}

type SortOrderPair struct {
	ID        string `json:"id"`
	SortOrder int    `json:"sort_order"`
}

func (uc *TreeUseCase) AddSection(ctx context.Context, documentID, name string) (*domain.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrValidation, "add section",
			errors.New("section name is required"))
	}

	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := lockedGuard(doc); err != nil {
			return err
		}
		if doc.Kind != domain.KindQuote {
			return domain.WrapError(domain.ErrValidation, "add section",
				errors.New("invoices have a flat item list, no sections"))
		}

		maxSort, maxLabel := 0, 0
		for _, sec := range doc.Sections {
			if sec.SortOrder > maxSort {
				maxSort = sec.SortOrder
			}
			if sec.SectionNumber > maxLabel {
				maxLabel = sec.SectionNumber
			}
		}
		now := time.Now().UTC()
		doc.Sections = append(doc.Sections, domain.Section{
			ID:            uuid.NewString(),
			DocumentID:    doc.ID,
			Name:          name,
			SectionNumber: maxLabel + 1,
			SortOrder:     maxSort + 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		doc.Recalculate()
		return nil
	})
}

func (uc *TreeUseCase) UpdateSection(ctx context.Context, sectionID string, patch SectionPatch) (*domain.Document, error) {
	documentID, err := uc.docs.DocumentIDBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := lockedGuard(doc); err != nil {
			return err
		}
		sec := findSection(doc, sectionID)
		if sec == nil {
			return domain.WrapError(domain.ErrNotFound, "update section",
				fmt.Errorf("section %s", sectionID))
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return domain.WrapError(domain.ErrValidation, "update section",
					errors.New("section name is required"))
			}
			sec.Name = name
		}
		if patch.SectionNumber != nil {
			sec.SectionNumber = *patch.SectionNumber
		}
		sec.UpdatedAt = time.Now().UTC()
		doc.Recalculate()
		return nil
	})
}

// RemoveSection deletes the section and every item it owns.
func (uc *TreeUseCase) RemoveSection(ctx context.Context, sectionID string) (*domain.Document, error) {
	documentID, err := uc.docs.DocumentIDBySection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := lockedGuard(doc); err != nil {
			return err
		}
		for i, sec := range doc.Sections {
			if sec.ID == sectionID {
				doc.Sections = append(doc.Sections[:i], doc.Sections[i+1:]...)
				doc.Recalculate()
				return nil
			}
		}
		return domain.WrapError(domain.ErrNotFound, "remove section",
			fmt.Errorf("section %s", sectionID))
	})
}

// AddItem appends an item. Quote items go into the given section;
// invoice items are flat and sectionID must be empty.
func (uc *TreeUseCase) AddItem(ctx context.Context, documentID, sectionID string, input ItemInput) (*domain.Document, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "add item",
			errors.New("item name is required"))
	}
	mode := input.BillingMode
	if mode == "" {
		mode = domain.BillingFixed
	}
	if mode != domain.BillingFixed && mode != domain.BillingHourly {
		return nil, domain.WrapError(domain.ErrValidation, "add item",
			fmt.Errorf("unknown billing mode %q", input.BillingMode))
	}

	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := lockedGuard(doc); err != nil {
			return err
		}

		include := true
		if input.IncludeInTotal != nil {
			include = *input.IncludeInTotal
		}
		now := time.Now().UTC()
		item := domain.Item{
			ID:             uuid.NewString(),
			DocumentID:     doc.ID,
			Name:           strings.TrimSpace(input.Name),
			Description:    input.Description,
			BillingMode:    mode,
			Quantity:       input.Quantity,
			UnitPrice:      input.UnitPrice,
			Hours:          input.Hours,
			HourlyRate:     input.HourlyRate,
			IncludeInTotal: include,
			IsSelected:     input.IsSelected,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		item.RecomputeTotal()

		switch doc.Kind {
		case domain.KindQuote:
			if sectionID == "" {
				return domain.WrapError(domain.ErrValidation, "add item",
					errors.New("quote items belong to a section"))
			}
			sec := findSection(doc, sectionID)
			if sec == nil {
				return domain.WrapError(domain.ErrNotFound, "add item",
					fmt.Errorf("section %s", sectionID))
			}
			item.SectionID = sec.ID
			item.SortOrder = nextItemSortOrder(sec.Items)
			sec.Items = append(sec.Items, item)
		default:
			if sectionID != "" {
				return domain.WrapError(domain.ErrValidation, "add item",
					errors.New("invoice items cannot target a section"))
			}
			item.SortOrder = nextItemSortOrder(doc.Items)
			doc.Items = append(doc.Items, item)
		}

		doc.Recalculate()
		return nil
	})
}

func (uc *TreeUseCase) UpdateItem(ctx context.Context, itemID string, patch ItemPatch) (*domain.Document, error) {
	documentID, err := uc.docs.DocumentIDByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := lockedGuard(doc); err != nil {
			return err
		}
		item := findItem(doc, itemID)
		if item == nil {
			return domain.WrapError(domain.ErrNotFound, "update item",
				fmt.Errorf("item %s", itemID))
		}

		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return domain.WrapError(domain.ErrValidation, "update item",
					errors.New("item name is required"))
			}
			item.Name = name
		}
		if patch.Description != nil {
			item.Description = *patch.Description
		}
		if patch.BillingMode != nil {
			if *patch.BillingMode != domain.BillingFixed && *patch.BillingMode != domain.BillingHourly {
				return domain.WrapError(domain.ErrValidation, "update item",
					fmt.Errorf("unknown billing mode %q", *patch.BillingMode))
			}
			item.BillingMode = *patch.BillingMode
		}
		if patch.Quantity != nil {
			item.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			item.UnitPrice = *patch.UnitPrice
		}
		if patch.Hours != nil {
			item.Hours = *patch.Hours
		}
		if patch.HourlyRate != nil {
			item.HourlyRate = *patch.HourlyRate
		}
		if patch.IncludeInTotal != nil {
			item.IncludeInTotal = *patch.IncludeInTotal
		}
		if patch.IsSelected != nil {
			item.IsSelected = *patch.IsSelected
		}

		item.RecomputeTotal()
		item.UpdatedAt = time.Now().UTC()
		doc.Recalculate()
		return nil
	})
}

// RemoveItem deletes one item. Removing the last item of a section
// leaves the empty section in place.
func (uc *TreeUseCase) RemoveItem(ctx context.Context, itemID string) (*domain.Document, error) {
	documentID, err := uc.docs.DocumentIDByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := lockedGuard(doc); err != nil {
			return err
		}
		if !removeItem(doc, itemID) {
			return domain.WrapError(domain.ErrNotFound, "remove item",
				fmt.Errorf("item %s", itemID))
		}
		doc.Recalculate()
		return nil
	})
}

// ReorderSections applies an explicit batch of (id, sortOrder) pairs.
// Section numbers are display labels and stay untouched.
func (uc *TreeUseCase) ReorderSections(ctx context.Context, documentID string, order []SortOrderPair) (*domain.Document, error) {
	if len(order) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "reorder sections",
			errors.New("order list is empty"))
	}

	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := lockedGuard(doc); err != nil {
			return err
		}
		for _, pair := range order {
			sec := findSection(doc, pair.ID)
			if sec == nil {
				return domain.WrapError(domain.ErrNotFound, "reorder sections",
					fmt.Errorf("section %s", pair.ID))
			}
			sec.SortOrder = pair.SortOrder
		}
		doc.Recalculate()
		return nil
	})
}

// ReorderItems applies a batch of (id, sortOrder) pairs within one
// scope: a section for quotes, the flat list for invoices.
func (uc *TreeUseCase) ReorderItems(ctx context.Context, documentID, sectionID string, order []SortOrderPair) (*domain.Document, error) {
	if len(order) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "reorder items",
			errors.New("order list is empty"))
	}

	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := lockedGuard(doc); err != nil {
			return err
		}
		for _, pair := range order {
			item := findItem(doc, pair.ID)
			if item == nil {
				return domain.WrapError(domain.ErrNotFound, "reorder items",
					fmt.Errorf("item %s", pair.ID))
			}
			if sectionID != "" && item.SectionID != sectionID {
				return domain.WrapError(domain.ErrValidation, "reorder items",
					fmt.Errorf("item %s is outside section %s", pair.ID, sectionID))
			}
			item.SortOrder = pair.SortOrder
		}
		doc.Recalculate()
		return nil
	})
}

func lockedGuard(doc *domain.Document) error {
	if !doc.Locked() {
		return nil
	}
	reason := "cannot modify an accepted or expired quote"
	if doc.Kind == domain.KindInvoice {
		reason = "cannot modify a paid or cancelled invoice"
	}
	return domain.WrapError(domain.ErrLocked, "mutate document tree", errors.New(reason))
}

func findSection(doc *domain.Document, sectionID string) *domain.Section {
	for i := range doc.Sections {
		if doc.Sections[i].ID == sectionID {
			return &doc.Sections[i]
		}
	}
	return nil
}

func findItem(doc *domain.Document, itemID string) *domain.Item {
	for i := range doc.Items {
		if doc.Items[i].ID == itemID {
			return &doc.Items[i]
		}
	}
	for i := range doc.Sections {
		for j := range doc.Sections[i].Items {
			if doc.Sections[i].Items[j].ID == itemID {
				return &doc.Sections[i].Items[j]
			}
		}
	}
	return nil
}

func removeItem(doc *domain.Document, itemID string) bool {
	for i := range doc.Items {
		if doc.Items[i].ID == itemID {
			doc.Items = append(doc.Items[:i], doc.Items[i+1:]...)
			return true
		}
	}
	for i := range doc.Sections {
		items := doc.Sections[i].Items
		for j := range items {
			if items[j].ID == itemID {
				doc.Sections[i].Items = append(items[:j], items[j+1:]...)
				return true
			}
		}
	}
	return false
}

func nextItemSortOrder(items []domain.Item) int {
	max := 0
	for _, it := range items {
		if it.SortOrder > max {
			max = it.SortOrder
		}
	}
	return max + 1
}
