package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lachapelle/studio-backoffice/internal/config"
	"github.com/lachapelle/studio-backoffice/internal/core/domain"
	"github.com/lachapelle/studio-backoffice/internal/core/ports"
	"github.com/lachapelle/studio-backoffice/internal/core/usecase"
	"github.com/lachapelle/studio-backoffice/internal/infrastructure/export/excel"
	"github.com/lachapelle/studio-backoffice/internal/infrastructure/notify/nats"
	"github.com/lachapelle/studio-backoffice/internal/infrastructure/repository/postgres"
	"github.com/lachapelle/studio-backoffice/internal/infrastructure/resilience"
	"github.com/lachapelle/studio-backoffice/internal/infrastructure/taxrates"
	"github.com/lachapelle/studio-backoffice/internal/observability/logging"
	"github.com/lachapelle/studio-backoffice/internal/observability/metrics"
)

const serviceName = "backoffice-api"

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics

	Documents *usecase.DocumentUseCase
	Tree      *usecase.TreeUseCase
	Lifecycle *usecase.LifecycleUseCase
	Templates *usecase.TemplateUseCase
	Directory *usecase.DirectoryUseCase

	DirectoryRepo ports.DirectoryRepository
	Exporter      *excel.Exporter

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	serverMetrics := metrics.NewHTTPServerMetrics(serviceName)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	docRepo := &instrumentedDocumentRepository{
		next:    postgres.NewDocumentRepository(db),
		metrics: serverMetrics,
	}
	directoryRepo := postgres.NewDirectoryRepository(db)
	templateRepo := postgres.NewTemplateRepository(db)

	notifier, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.PublishConfig()),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init notifier: %w", err)
	}
	sink := instrumentedSink{
		next:    notifier,
		metrics: serverMetrics,
	}

	rates := taxrates.NewStatic(cfg.TaxRate1, cfg.TaxRate2)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: serverMetrics,

		Documents: usecase.NewDocumentUseCase(docRepo, directoryRepo, rates, cfg.QuoteValidityDays),
		Tree:      usecase.NewTreeUseCase(docRepo),
		Lifecycle: usecase.NewLifecycleUseCase(docRepo, sink),
		Templates: usecase.NewTemplateUseCase(templateRepo, docRepo, directoryRepo, rates, cfg.QuoteValidityDays),
		Directory: usecase.NewDirectoryUseCase(directoryRepo),

		DirectoryRepo: directoryRepo,
		Exporter:      excel.NewExporter(),

		closeFn: func() {
			notifier.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// instrumentedDocumentRepository counts numbering races lost on Create.
// Every other method passes through untouched.
type instrumentedDocumentRepository struct {
	next    ports.DocumentRepository
	metrics *metrics.HTTPServerMetrics
}

func (r *instrumentedDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	err := r.next.Create(ctx, doc)
	if domain.IsKind(err, domain.ErrConflict) {
		r.metrics.RecordNumberConflict(serviceName, string(doc.Kind))
	}
	return err
}

func (r *instrumentedDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return r.next.GetByID(ctx, id)
}

func (r *instrumentedDocumentRepository) GetByPublicToken(ctx context.Context, token string) (*domain.Document, error) {
	return r.next.GetByPublicToken(ctx, token)
}

func (r *instrumentedDocumentRepository) ListByProject(ctx context.Context, projectID string, kind domain.DocumentKind) ([]domain.Document, error) {
	return r.next.ListByProject(ctx, projectID, kind)
}

func (r *instrumentedDocumentRepository) Delete(ctx context.Context, id string) error {
	return r.next.Delete(ctx, id)
}

func (r *instrumentedDocumentRepository) Mutate(ctx context.Context, id string, fn func(doc *domain.Document) error) (*domain.Document, error) {
	return r.next.Mutate(ctx, id, fn)
}

func (r *instrumentedDocumentRepository) DocumentIDByItem(ctx context.Context, itemID string) (string, error) {
	return r.next.DocumentIDByItem(ctx, itemID)
}

func (r *instrumentedDocumentRepository) DocumentIDBySection(ctx context.Context, sectionID string) (string, error) {
	return r.next.DocumentIDBySection(ctx, sectionID)
}

// instrumentedSink counts publish outcomes without changing the
// fire-and-forget contract of the underlying sink.
type instrumentedSink struct {
	next    ports.NotificationSink
	metrics *metrics.HTTPServerMetrics
}

func (s instrumentedSink) Publish(ctx context.Context, n domain.Notification) error {
	err := s.next.Publish(ctx, n)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordNotification(serviceName, n.Type, outcome)
	return err
}
