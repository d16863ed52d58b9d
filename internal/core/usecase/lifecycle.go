package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
	"github.com/lachapelle/studio-backoffice/internal/core/ports"
)

// LifecycleUseCase drives status transitions, including the ones
// triggered by unauthenticated public access.
type LifecycleUseCase struct {
	docs     ports.DocumentRepository
	notifier ports.NotificationSink
}

func NewLifecycleUseCase(docs ports.DocumentRepository, notifier ports.NotificationSink) *LifecycleUseCase {
	return &LifecycleUseCase{docs: docs, notifier: notifier}
}

// Send moves a draft document to SENT and issues its public token if it
// has none yet. The token is permanent once issued.
func (uc *LifecycleUseCase) Send(ctx context.Context, documentID string) (*domain.Document, error) {
	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		if err := domain.Transition(doc, domain.StatusSent); err != nil {
			return err
		}
		if doc.PublicToken == "" {
			token, err := domain.NewPublicToken()
			if err != nil {
				return err
			}
			doc.PublicToken = token
		}
		return nil
	})
}

// ViewViaPublicToken resolves a public token to its document and applies
// the read-triggered transitions: a SENT quote becomes VIEWED (emitting
// exactly one notification), and a quote past its validity date
// surfaces EXPIRED. Reads of already-VIEWED documents are status no-ops.
func (uc *LifecycleUseCase) ViewViaPublicToken(ctx context.Context, token string) (*domain.Document, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.WrapError(domain.ErrValidation, "view document",
			errors.New("public token is required"))
	}

	doc, err := uc.docs.GetByPublicToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if doc.Kind != domain.KindQuote {
		// Invoices have no VIEWED state: public access is a plain read.
		return doc, nil
	}

	viewed := false
	updated, err := uc.docs.Mutate(ctx, doc.ID, func(d *domain.Document) error {
		if quoteExpired(d, time.Now().UTC()) {
			return domain.Transition(d, domain.StatusExpired)
		}
		// Only the first public read while SENT flips the status; the
		// Mutate lock serializes concurrent reads so exactly one of
		// them observes SENT.
		if d.Status == domain.StatusSent {
			if err := domain.Transition(d, domain.StatusViewed); err != nil {
				return err
			}
			viewed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if viewed {
		uc.notify(ctx, updated)
	}
	return updated, nil
}

// MarkAccepted records the client's decision on a quote.
func (uc *LifecycleUseCase) MarkAccepted(ctx context.Context, documentID string) (*domain.Document, error) {
	return uc.mark(ctx, documentID, domain.StatusAccepted)
}

func (uc *LifecycleUseCase) MarkExpired(ctx context.Context, documentID string) (*domain.Document, error) {
	return uc.mark(ctx, documentID, domain.StatusExpired)
}

func (uc *LifecycleUseCase) MarkPaid(ctx context.Context, documentID string) (*domain.Document, error) {
	return uc.mark(ctx, documentID, domain.StatusPaid)
}

func (uc *LifecycleUseCase) MarkCancelled(ctx context.Context, documentID string) (*domain.Document, error) {
	return uc.mark(ctx, documentID, domain.StatusCancelled)
}

func (uc *LifecycleUseCase) mark(ctx context.Context, documentID string, to domain.DocumentStatus) (*domain.Document, error) {
	return uc.docs.Mutate(ctx, documentID, func(doc *domain.Document) error {
		return domain.Transition(doc, to)
	})
}

// notify is fire-and-forget: a sink failure is logged and never rolls
// back the transition that triggered it.
func (uc *LifecycleUseCase) notify(ctx context.Context, doc *domain.Document) {
	if uc.notifier == nil {
		return
	}
	n := domain.Notification{
		Type:        "quote_viewed",
		Title:       "Quote viewed",
		Message:     fmt.Sprintf("Quote %s was opened by the client", doc.Number),
		Link:        "/quotes/" + doc.ID,
		RelatedID:   doc.ID,
		RelatedType: string(doc.Kind),
	}
	if err := uc.notifier.Publish(ctx, n); err != nil {
		slog.Warn("notification_publish_failed",
			"document_id", doc.ID,
			"number", doc.Number,
			"error", err,
		)
	}
}

func quoteExpired(doc *domain.Document, now time.Time) bool {
	if doc.ValidUntil == nil || doc.ValidUntil.After(now) {
		return false
	}
	return doc.Status == domain.StatusSent || doc.Status == domain.StatusViewed
}
