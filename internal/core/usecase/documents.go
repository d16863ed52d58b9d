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

// numberingRetries bounds how often document creation retries after a
// lost numbering race before surfacing Conflict to the caller.
const numberingRetries = 3

type DocumentUseCase struct {
	docs      ports.DocumentRepository
	directory ports.DirectoryRepository
	rates     ports.TaxRateProvider

	quoteValidityDays int
}

func NewDocumentUseCase(
	docs ports.DocumentRepository,
	directory ports.DirectoryRepository,
	rates ports.TaxRateProvider,
	quoteValidityDays int,
) *DocumentUseCase {
	return &DocumentUseCase{
		docs:              docs,
		directory:         directory,
		rates:             rates,
		quoteValidityDays: quoteValidityDays,
	}
}

// Create builds a draft document for a project. The number is allocated
// atomically with the insert; the studio's current tax rates are frozen
// onto the row and never re-read.
func (uc *DocumentUseCase) Create(ctx context.Context, kind domain.DocumentKind, projectID string) (*domain.Document, error) {
	if !kind.Valid() {
		return nil, domain.WrapError(domain.ErrValidation, "create document",
			fmt.Errorf("unknown document kind %q", kind))
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "create document",
			errors.New("project id is required"))
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
		ID:        uuid.NewString(),
		Kind:      kind,
		ProjectID: project.ID,
		ClientID:  client.ID,
		Status:    domain.StatusDraft,
		Taxes:     policy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if kind == domain.KindQuote && uc.quoteValidityDays > 0 {
		validUntil := now.AddDate(0, 0, uc.quoteValidityDays)
		doc.ValidUntil = &validUntil
	}
	doc.Recalculate()

	if err := createWithNumberRetry(ctx, uc.docs, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *DocumentUseCase) Get(ctx context.Context, id string) (*domain.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrValidation, "get document",
			errors.New("document id is required"))
	}
	return uc.docs.GetByID(ctx, id)
}

func (uc *DocumentUseCase) ListByProject(ctx context.Context, projectID string, kind domain.DocumentKind) ([]domain.Document, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "list documents",
			errors.New("project id is required"))
	}
	if kind != "" && !kind.Valid() {
		return nil, domain.WrapError(domain.ErrValidation, "list documents",
			fmt.Errorf("unknown document kind %q", kind))
	}
	return uc.docs.ListByProject(ctx, projectID, kind)
}

// Delete removes the document and its whole tree. Documents are never
// partially deleted.
func (uc *DocumentUseCase) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.WrapError(domain.ErrValidation, "delete document",
			errors.New("document id is required"))
	}
	return uc.docs.Delete(ctx, id)
}

// createWithNumberRetry persists a document, retrying number allocation
// when a concurrent creation for the same client wins the race. The
// conflict is transient, not a caller mistake, so it is retried here
// rather than surfaced immediately.
func createWithNumberRetry(ctx context.Context, repo ports.DocumentRepository, doc *domain.Document) error {
	var err error
	for attempt := 0; attempt < numberingRetries; attempt++ {
		doc.Number = ""
		err = repo.Create(ctx, doc)
		if err == nil {
			return nil
		}
		if !domain.IsKind(err, domain.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("allocate document number after %d attempts: %w", numberingRetries, err)
}
