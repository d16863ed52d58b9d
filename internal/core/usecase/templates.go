package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
	"github.com/lachapelle/studio-backoffice/internal/core/ports"
)

// TemplateUseCase clones document trees between reusable templates and
// concrete documents, and duplicates documents directly.
type TemplateUseCase struct {
	templates ports.TemplateRepository
	docs      ports.DocumentRepository
	directory ports.DirectoryRepository
	rates     ports.TaxRateProvider

	quoteValidityDays int
}

func NewTemplateUseCase(
	templates ports.TemplateRepository,
	docs ports.DocumentRepository,
	directory ports.DirectoryRepository,
	rates ports.TaxRateProvider,
	quoteValidityDays int,
) *TemplateUseCase {
	return &TemplateUseCase{
		templates:         templates,
		docs:              docs,
		directory:         directory,
		rates:             rates,
		quoteValidityDays: quoteValidityDays,
	}
}

// Create stores a fresh template authored from scratch.
func (uc *TemplateUseCase) Create(ctx context.Context, tpl *domain.Template) (*domain.Template, error) {
	tpl.Name = strings.TrimSpace(tpl.Name)
	if tpl.Name == "" {
		return nil, domain.WrapError(domain.ErrValidation, "create template",
			errors.New("template name is required"))
	}
	assignTemplateIDs(tpl)
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := uc.templates.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// SaveAsTemplate snapshots an existing quote's tree into a template.
func (uc *TemplateUseCase) SaveAsTemplate(ctx context.Context, documentID, name, description string) (*domain.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrValidation, "save as template",
			errors.New("template name is required"))
	}

	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Kind != domain.KindQuote {
		return nil, domain.WrapError(domain.ErrValidation, "save as template",
			fmt.Errorf("templates are built from quotes, not %s", doc.Kind))
	}

	tpl := domain.CaptureTemplate(doc, name, description)
	assignTemplateIDs(tpl)
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := uc.templates.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// Instantiate creates a new draft quote from a template: fresh number,
// initial status, section labels renumbered, and the studio's current
// tax rates rather than whatever was current when the template was
// saved.
func (uc *TemplateUseCase) Instantiate(ctx context.Context, templateID, projectID string) (*domain.Document, error) {
	tpl, err := uc.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	project, err := uc.directory.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("resolve project: %w", err)
	}
	client, err := uc.directory.GetClient(ctx, project.ClientID)
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}
	policy, err := uc.rates.CurrentRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch studio tax rates: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:             uuid.NewString(),
		Kind:           domain.KindQuote,
		ProjectID:      project.ID,
		ClientID:       client.ID,
		Status:         domain.StatusDraft,
		Taxes:          policy,
		CoverNote:      tpl.CoverNote,
		PaymentTerms:   tpl.PaymentTerms,
		DepositPercent: tpl.DepositPercent,
		Sections:       tpl.MaterializeSections(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if uc.quoteValidityDays > 0 {
		validUntil := now.AddDate(0, 0, uc.quoteValidityDays)
		doc.ValidUntil = &validUntil
	}
	attachTree(doc)
	doc.Recalculate()

	if err := createWithNumberRetry(ctx, uc.docs, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Duplicate copies a document as if it were instantiated from an
// implicit single-use template: same tree and descriptive fields, fresh
// number in the same client namespace, DRAFT status, no public token,
// and the studio's current tax rates.
func (uc *TemplateUseCase) Duplicate(ctx context.Context, documentID string) (*domain.Document, error) {
	src, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	policy, err := uc.rates.CurrentRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch studio tax rates: %w", err)
	}

	sections, items := domain.CloneTree(src)
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:             uuid.NewString(),
		Kind:           src.Kind,
		ProjectID:      src.ProjectID,
		ClientID:       src.ClientID,
		Status:         domain.StatusDraft,
		Taxes:          policy,
		DiscountAmount: src.DiscountAmount,
		Title:          src.Title,
		CoverNote:      src.CoverNote,
		PaymentTerms:   src.PaymentTerms,
		DepositPercent: src.DepositPercent,
		Sections:       sections,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if src.Kind == domain.KindQuote && uc.quoteValidityDays > 0 {
		validUntil := now.AddDate(0, 0, uc.quoteValidityDays)
		doc.ValidUntil = &validUntil
	}
	attachTree(doc)
	doc.Recalculate()

	if err := createWithNumberRetry(ctx, uc.docs, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *TemplateUseCase) Get(ctx context.Context, id string) (*domain.Template, error) {
	return uc.templates.GetByID(ctx, id)
}

func (uc *TemplateUseCase) List(ctx context.Context) ([]domain.Template, error) {
	return uc.templates.List(ctx)
}

func (uc *TemplateUseCase) Delete(ctx context.Context, id string) error {
	return uc.templates.Delete(ctx, id)
}

func assignTemplateIDs(tpl *domain.Template) {
	tpl.ID = uuid.NewString()
	for i := range tpl.Sections {
		sec := &tpl.Sections[i]
		sec.ID = uuid.NewString()
		sec.TemplateID = tpl.ID
		for j := range sec.Items {
			sec.Items[j].ID = uuid.NewString()
			sec.Items[j].SectionID = sec.ID
		}
	}
}

// attachTree stamps fresh ids and ownership onto a cloned tree.
func attachTree(doc *domain.Document) {
	now := time.Now().UTC()
	for i := range doc.Sections {
		sec := &doc.Sections[i]
		sec.ID = uuid.NewString()
		sec.DocumentID = doc.ID
		sec.CreatedAt = now
		sec.UpdatedAt = now
		for j := range sec.Items {
			item := &sec.Items[j]
			item.ID = uuid.NewString()
			item.DocumentID = doc.ID
			item.SectionID = sec.ID
			item.CreatedAt = now
			item.UpdatedAt = now
		}
	}
	for i := range doc.Items {
		item := &doc.Items[i]
		item.ID = uuid.NewString()
		item.DocumentID = doc.ID
		item.CreatedAt = now
		item.UpdatedAt = now
	}
}
