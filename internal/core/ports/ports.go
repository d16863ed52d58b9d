package ports

import (
	"context"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

// DocumentRepository persists documents and their pricing trees.
type DocumentRepository interface {
	// Create persists a new document. When doc.Number is empty it
	// allocates the next number in the (kind, client code) namespace
	// atomically with the insert; a lost numbering race surfaces as
	// domain.ErrConflict and the caller retries.
	Create(ctx context.Context, doc *domain.Document) error

	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetByPublicToken(ctx context.Context, token string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string, kind domain.DocumentKind) ([]domain.Document, error)

	// Delete removes the document and its whole tree.
	Delete(ctx context.Context, id string) error

	// Mutate serializes read-modify-write cycles on one document: the
	// row is locked, the full tree is loaded, fn mutates it in memory,
	// and the tree plus derived totals persist in the same transaction.
	Mutate(ctx context.Context, id string, fn func(doc *domain.Document) error) (*domain.Document, error)

	// Owning-document lookups for item/section-addressed operations.
	DocumentIDByItem(ctx context.Context, itemID string) (string, error)
	DocumentIDBySection(ctx context.Context, sectionID string) (string, error)
}

// TemplateRepository persists detached document trees.
type TemplateRepository interface {
	Create(ctx context.Context, tpl *domain.Template) error
	GetByID(ctx context.Context, id string) (*domain.Template, error)
	List(ctx context.Context) ([]domain.Template, error)
	Delete(ctx context.Context, id string) error
}

// DirectoryRepository holds the minimal client/project rows the engine
// needs to resolve a project to a client code.
type DirectoryRepository interface {
	CreateClient(ctx context.Context, client *domain.Client) error
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	ListClients(ctx context.Context) ([]domain.Client, error)

	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context, clientID string) ([]domain.Project, error)
}

// NotificationSink accepts lifecycle events. Fire-and-forget: a publish
// failure must never roll back the transition that triggered it.
type NotificationSink interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// TaxRateProvider supplies the studio's current default tax rates at
// document-creation time. The engine freezes them onto the document and
// never re-reads them afterward.
type TaxRateProvider interface {
	CurrentRates(ctx context.Context) (domain.TaxPolicy, error)
}
