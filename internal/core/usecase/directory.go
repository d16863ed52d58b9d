package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
	"github.com/lachapelle/studio-backoffice/internal/core/ports"
)

var clientCodePattern = regexp.MustCompile(`^[A-Z0-9]{2,12}$`)

// DirectoryUseCase manages the minimal client/project rows the
// numbering namespace hangs off of.
type DirectoryUseCase struct {
	directory ports.DirectoryRepository
}

func NewDirectoryUseCase(directory ports.DirectoryRepository) *DirectoryUseCase {
	return &DirectoryUseCase{directory: directory}
}

func (uc *DirectoryUseCase) CreateClient(ctx context.Context, name, code string) (*domain.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrValidation, "create client",
			errors.New("client name is required"))
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if !clientCodePattern.MatchString(code) {
		return nil, domain.WrapError(domain.ErrValidation, "create client",
			errors.New("client code must be 2-12 uppercase letters or digits"))
	}

	client := &domain.Client{
		ID:        uuid.NewString(),
		Name:      name,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.directory.CreateClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (uc *DirectoryUseCase) ListClients(ctx context.Context) ([]domain.Client, error) {
	return uc.directory.ListClients(ctx)
}

func (uc *DirectoryUseCase) CreateProject(ctx context.Context, clientID, name string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrValidation, "create project",
			errors.New("project name is required"))
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "create project",
			errors.New("client id is required"))
	}
	if _, err := uc.directory.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	project := &domain.Project{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.directory.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (uc *DirectoryUseCase) ListProjects(ctx context.Context, clientID string) ([]domain.Project, error) {
	return uc.directory.ListProjects(ctx, strings.TrimSpace(clientID))
}
