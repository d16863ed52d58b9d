package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// docRepoFake keeps documents in memory and mimics the repository's
// numbering and mutation contracts closely enough for engine tests:
// Create allocates D-CODE-NNN numbers from a per-namespace counter and
// Mutate applies the closure under a lock.
type docRepoFake struct {
	mu sync.Mutex

	docs        map[string]*domain.Document
	seq         map[string]int64
	clientCodes map[string]string

	// createErrs is a script of errors returned by successive Create
	// calls before the real behavior kicks in.
	createErrs  []error
	createCalls int
}

func newDocRepoFake() *docRepoFake {
	return &docRepoFake{
		docs:        map[string]*domain.Document{},
		seq:         map[string]int64{},
		clientCodes: map[string]string{},
	}
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}

	code, ok := f.clientCodes[doc.ClientID]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "allocate number",
			fmt.Errorf("client %s", doc.ClientID))
	}
	if doc.Number == "" {
		key := string(doc.Kind) + "|" + code
		f.seq[key]++
		doc.Number = domain.FormatNumber(doc.Kind, code, f.seq[key])
	}
	clone := *doc
	f.docs[doc.ID] = &clone
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("document %s", id))
	}
	return doc, nil
}

func (f *docRepoFake) GetByPublicToken(_ context.Context, token string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.PublicToken != "" && doc.PublicToken == token {
			return doc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "resolve public token", fmt.Errorf("token %s", token))
}

func (f *docRepoFake) ListByProject(_ context.Context, projectID string, kind domain.DocumentKind) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.ProjectID != projectID {
			continue
		}
		if kind != "" && doc.Kind != kind {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (f *docRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete document", fmt.Errorf("document %s", id))
	}
	delete(f.docs, id)
	return nil
}

func (f *docRepoFake) Mutate(_ context.Context, id string, fn func(doc *domain.Document) error) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "mutate document", fmt.Errorf("document %s", id))
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (f *docRepoFake) DocumentIDByItem(_ context.Context, itemID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		for _, it := range doc.AllItems() {
			if it.ID == itemID {
				return doc.ID, nil
			}
		}
	}
	return "", domain.WrapError(domain.ErrNotFound, "locate item", fmt.Errorf("item %s", itemID))
}

func (f *docRepoFake) DocumentIDBySection(_ context.Context, sectionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		for _, sec := range doc.Sections {
			if sec.ID == sectionID {
				return doc.ID, nil
			}
		}
	}
	return "", domain.WrapError(domain.ErrNotFound, "locate section", fmt.Errorf("section %s", sectionID))
}

type directoryFake struct {
	clients  map[string]*domain.Client
	projects map[string]*domain.Project
}

func newDirectoryFake() *directoryFake {
	return &directoryFake{
		clients:  map[string]*domain.Client{},
		projects: map[string]*domain.Project{},
	}
}

func (f *directoryFake) CreateClient(_ context.Context, c *domain.Client) error {
	for _, existing := range f.clients {
		if existing.Code == c.Code {
			return domain.WrapError(domain.ErrConflict, "create client",
				fmt.Errorf("client code %s already exists", c.Code))
		}
	}
	f.clients[c.ID] = c
	return nil
}

func (f *directoryFake) GetClient(_ context.Context, id string) (*domain.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get client", fmt.Errorf("client %s", id))
	}
	return c, nil
}

func (f *directoryFake) ListClients(_ context.Context) ([]domain.Client, error) {
	var out []domain.Client
	for _, c := range f.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (f *directoryFake) CreateProject(_ context.Context, p *domain.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *directoryFake) GetProject(_ context.Context, id string) (*domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get project", fmt.Errorf("project %s", id))
	}
	return p, nil
}

func (f *directoryFake) ListProjects(_ context.Context, clientID string) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range f.projects {
		if clientID == "" || p.ClientID == clientID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type ratesFake struct {
	policy domain.TaxPolicy
	err    error
}

func (f *ratesFake) CurrentRates(context.Context) (domain.TaxPolicy, error) {
	if f.err != nil {
		return domain.TaxPolicy{}, f.err
	}
	return f.policy, nil
}

type notifierFake struct {
	mu            sync.Mutex
	notifications []domain.Notification
	err           error
}

func (f *notifierFake) Publish(_ context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *notifierFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}

type templateRepoFake struct {
	templates map[string]*domain.Template
}

func newTemplateRepoFake() *templateRepoFake {
	return &templateRepoFake{templates: map[string]*domain.Template{}}
}

func (f *templateRepoFake) Create(_ context.Context, tpl *domain.Template) error {
	f.templates[tpl.ID] = tpl
	return nil
}

func (f *templateRepoFake) GetByID(_ context.Context, id string) (*domain.Template, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get template", fmt.Errorf("template %s", id))
	}
	return tpl, nil
}

func (f *templateRepoFake) List(context.Context) ([]domain.Template, error) {
	var out []domain.Template
	for _, tpl := range f.templates {
		out = append(out, *tpl)
	}
	return out, nil
}

func (f *templateRepoFake) Delete(_ context.Context, id string) error {
	if _, ok := f.templates[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete template", fmt.Errorf("template %s", id))
	}
	delete(f.templates, id)
	return nil
}

// fixture wires a studio with one client and one project, the starting
// point most engine tests share.
type fixture struct {
	repo      *docRepoFake
	directory *directoryFake
	templates *templateRepoFake
	rates     *ratesFake
	notifier  *notifierFake

	clientID  string
	projectID string

	docsUC      *DocumentUseCase
	treeUC      *TreeUseCase
	lifecycleUC *LifecycleUseCase
	templatesUC *TemplateUseCase
}

func newFixture(clientCode string) *fixture {
	f := &fixture{
		repo:      newDocRepoFake(),
		directory: newDirectoryFake(),
		templates: newTemplateRepoFake(),
		rates:     &ratesFake{policy: domain.TaxPolicy{Rate1: dec("5"), Rate2: dec("9.975")}},
		notifier:  &notifierFake{},
	}

	client := &domain.Client{ID: "client-1", Name: "Studio client", Code: clientCode}
	project := &domain.Project{ID: "project-1", ClientID: client.ID, Name: "Launch"}
	f.directory.clients[client.ID] = client
	f.directory.projects[project.ID] = project
	f.repo.clientCodes[client.ID] = client.Code
	f.clientID = client.ID
	f.projectID = project.ID

	f.docsUC = NewDocumentUseCase(f.repo, f.directory, f.rates, 30)
	f.treeUC = NewTreeUseCase(f.repo)
	f.lifecycleUC = NewLifecycleUseCase(f.repo, f.notifier)
	f.templatesUC = NewTemplateUseCase(f.templates, f.repo, f.directory, f.rates, 30)
	return f
}
