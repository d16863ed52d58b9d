package usecase

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

func mustCreateQuoteWithSection(t *testing.T, f *fixture) (*domain.Document, string) {
	t.Helper()
	ctx := context.Background()
	doc, err := f.docsUC.Create(ctx, domain.KindQuote, f.projectID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	doc, err = f.treeUC.AddSection(ctx, doc.ID, "Production")
	if err != nil {
		t.Fatalf("AddSection() error = %v", err)
	}
	return doc, doc.Sections[0].ID
}

func TestAddItemRecomputesDocumentTotals(t *testing.T) {
	f := newFixture("NOVA")
	ctx := context.Background()
	doc, sectionID := mustCreateQuoteWithSection(t, f)

	doc, err := f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name:      "Design sprint",
		Quantity:  dec("2"),
		UnitPrice: dec("100"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	item := doc.Sections[0].Items[0]
	if !item.Total.Equal(dec("200")) {
		t.Fatalf("item total = %s, want 200", item.Total)
	}
	if !item.IncludeInTotal {
		t.Fatalf("IncludeInTotal must default to true")
	}
	if item.SortOrder != 1 {
		t.Fatalf("first item sort order = %d, want 1", item.SortOrder)
	}
	if !doc.Subtotal.Equal(dec("200")) {
		t.Fatalf("subtotal = %s, want 200", doc.Subtotal)
	}
	if !doc.TaxAmount1.Equal(dec("10.00")) || !doc.TaxAmount2.Equal(dec("19.95")) {
		t.Fatalf("tax amounts = %s / %s, want 10.00 / 19.95", doc.TaxAmount1, doc.TaxAmount2)
	}
	if !doc.Total.Equal(dec("229.95")) {
		t.Fatalf("total = %s, want 229.95", doc.Total)
	}
}

func TestTotalsNeverDriftAcrossMutations(t *testing.T) {
	f := newFixture("NOVA")
	ctx := context.Background()
	doc, sectionID := mustCreateQuoteWithSection(t, f)

	doc, err := f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name: "A", Quantity: dec("1"), UnitPrice: dec("100"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	firstID := doc.Sections[0].Items[0].ID

	doc, err = f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name: "B", BillingMode: domain.BillingHourly, Hours: dec("10"), HourlyRate: dec("50"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	// Mutate, delete, re-add: the stored totals must always match an
	// independent from-scratch computation.
	newQty := dec("3")
	doc, err = f.treeUC.UpdateItem(ctx, firstID, ItemPatch{Quantity: &newQty})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	doc, err = f.treeUC.RemoveItem(ctx, firstID)
	if err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}
	doc, err = f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name: "A again", Quantity: dec("3"), UnitPrice: dec("100"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	expected := domain.CalculateTotals(doc.Kind, doc.AllItems(), doc.Taxes, domain.Adjustments{})
	if !doc.Subtotal.Equal(expected.Subtotal) {
		t.Fatalf("subtotal drifted: stored %s, recomputed %s", doc.Subtotal, expected.Subtotal)
	}
	if !doc.Total.Equal(expected.Total) {
		t.Fatalf("total drifted: stored %s, recomputed %s", doc.Total, expected.Total)
	}
	if !doc.Subtotal.Equal(dec("800")) {
		t.Fatalf("subtotal = %s, want 800", doc.Subtotal)
	}
}

func TestUpdateItemRecomputesFromBillingModeInputs(t *testing.T) {
	f := newFixture("NOVA")
	ctx := context.Background()
	doc, sectionID := mustCreateQuoteWithSection(t, f)

	doc, err := f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name: "Build", Quantity: dec("1"), UnitPrice: dec("100"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	itemID := doc.Sections[0].Items[0].ID

	hourly := domain.BillingHourly
	hours, rate := dec("8"), dec("95")
	doc, err = f.treeUC.UpdateItem(ctx, itemID, ItemPatch{
		BillingMode: &hourly,
		Hours:       &hours,
		HourlyRate:  &rate,
	})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if !doc.Sections[0].Items[0].Total.Equal(dec("760")) {
		t.Fatalf("item total = %s, want 760", doc.Sections[0].Items[0].Total)
	}
	if !doc.Subtotal.Equal(dec("760")) {
		t.Fatalf("subtotal = %s, want 760", doc.Subtotal)
	}
}

func TestExcludedQuoteItemStaysVisibleButUnbilled(t *testing.T) {
	f := newFixture("NOVA")
	ctx := context.Background()
	doc, sectionID := mustCreateQuoteWithSection(t, f)

	doc, err := f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name: "Base", Quantity: dec("1"), UnitPrice: dec("1000"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	exclude := false
	doc, err = f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name:           "Optional add-on",
		Quantity:       dec("1"),
		UnitPrice:      dec("500"),
		IncludeInTotal: &exclude,
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	if len(doc.Sections[0].Items) != 2 {
		t.Fatalf("items = %d, want 2 (excluded item stays visible)", len(doc.Sections[0].Items))
	}
	if !doc.Subtotal.Equal(dec("1000")) {
		t.Fatalf("subtotal = %s, want 1000", doc.Subtotal)
	}
}

func TestLockedInvoiceRejectsMutationsAndKeepsTotals(t *testing.T) {
	f := newFixture("ACME")
	ctx := context.Background()

	doc, err := f.docsUC.Create(ctx, domain.KindInvoice, f.projectID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	doc, err = f.treeUC.AddItem(ctx, doc.ID, "", ItemInput{
		Name: "Retainer", Quantity: dec("1"), UnitPrice: dec("5000"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	itemID := doc.Items[0].ID
	totalBefore := doc.Total

	if _, err := f.lifecycleUC.Send(ctx, doc.ID); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := f.lifecycleUC.MarkPaid(ctx, doc.ID); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}

	if _, err := f.treeUC.AddItem(ctx, doc.ID, "", ItemInput{Name: "Extra", Quantity: dec("1"), UnitPrice: dec("1")}); !domain.IsKind(err, domain.ErrLocked) {
		t.Fatalf("AddItem on paid invoice: expected ErrLocked, got %v", err)
	}
	qty := dec("9")
	if _, err := f.treeUC.UpdateItem(ctx, itemID, ItemPatch{Quantity: &qty}); !domain.IsKind(err, domain.ErrLocked) {
		t.Fatalf("UpdateItem on paid invoice: expected ErrLocked, got %v", err)
	}
	if _, err := f.treeUC.RemoveItem(ctx, itemID); !domain.IsKind(err, domain.ErrLocked) {
		t.Fatalf("RemoveItem on paid invoice: expected ErrLocked, got %v", err)
	}

	stored, err := f.docsUC.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !stored.Total.Equal(totalBefore) {
		t.Fatalf("stored total changed to %s after rejected mutations, want %s", stored.Total, totalBefore)
	}
	if len(stored.Items) != 1 || !stored.Items[0].Quantity.Equal(dec("1")) {
		t.Fatalf("stored tree changed after rejected mutations")
	}
}

func TestRemoveLastItemLeavesEmptySection(t *testing.T) {
	f := newFixture("NOVA")
	ctx := context.Background()
	doc, sectionID := mustCreateQuoteWithSection(t, f)

	doc, err := f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name: "Only item", Quantity: dec("1"), UnitPrice: dec("50"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	doc, err = f.treeUC.RemoveItem(ctx, doc.Sections[0].Items[0].ID)
	if err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}

	if len(doc.Sections) != 1 {
		t.Fatalf("empty section must not be auto-deleted")
	}
	if len(doc.Sections[0].Items) != 0 {
		t.Fatalf("items = %d, want 0", len(doc.Sections[0].Items))
	}
	if !doc.Subtotal.Equal(decimal.Zero) {
		t.Fatalf("subtotal = %s, want 0", doc.Subtotal)
	}
}

func TestReorderSectionsAppliesBatchWithoutRelabeling(t *testing.T) {
	f := newFixture("NOVA")
	ctx := context.Background()
	doc, _ := mustCreateQuoteWithSection(t, f)

	doc, err := f.treeUC.AddSection(ctx, doc.ID, "Discovery")
	if err != nil {
		t.Fatalf("AddSection() error = %v", err)
	}
	first, second := doc.Sections[0], doc.Sections[1]

	doc, err = f.treeUC.ReorderSections(ctx, doc.ID, []SortOrderPair{
		{ID: first.ID, SortOrder: 2},
		{ID: second.ID, SortOrder: 1},
	})
	if err != nil {
		t.Fatalf("ReorderSections() error = %v", err)
	}

	for _, sec := range doc.Sections {
		switch sec.ID {
		case first.ID:
			if sec.SortOrder != 2 {
				t.Fatalf("first section sort order = %d, want 2", sec.SortOrder)
			}
			if sec.SectionNumber != first.SectionNumber {
				t.Fatalf("section number relabeled on reorder")
			}
		case second.ID:
			if sec.SortOrder != 1 {
				t.Fatalf("second section sort order = %d, want 1", sec.SortOrder)
			}
		}
	}

	if _, err := f.treeUC.ReorderSections(ctx, doc.ID, []SortOrderPair{{ID: "ghost", SortOrder: 1}}); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown section, got %v", err)
	}
}

func TestAddSectionRejectedOnInvoices(t *testing.T) {
	f := newFixture("ACME")
	ctx := context.Background()

	doc, err := f.docsUC.Create(ctx, domain.KindInvoice, f.projectID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.treeUC.AddSection(ctx, doc.ID, "Nope"); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRemoveSectionCascadesItems(t *testing.T) {
	f := newFixture("NOVA")
	ctx := context.Background()
	doc, sectionID := mustCreateQuoteWithSection(t, f)

	doc, err := f.treeUC.AddItem(ctx, doc.ID, sectionID, ItemInput{
		Name: "Build", Quantity: dec("1"), UnitPrice: dec("800"),
	})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	doc, err = f.treeUC.RemoveSection(ctx, sectionID)
	if err != nil {
		t.Fatalf("RemoveSection() error = %v", err)
	}
	if len(doc.Sections) != 0 {
		t.Fatalf("sections = %d, want 0", len(doc.Sections))
	}
	if !doc.Subtotal.Equal(decimal.Zero) {
		t.Fatalf("subtotal = %s, want 0 after cascade", doc.Subtotal)
	}
}
