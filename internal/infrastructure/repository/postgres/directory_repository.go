package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

type DirectoryRepository struct {
	db *sql.DB
}

func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) CreateClient(ctx context.Context, client *domain.Client) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO clients (id, name, code, created_at) VALUES ($1,$2,$3,$4)
`, client.ID, client.Name, client.Code, client.CreatedAt)
	if err != nil {
		return mapConflict("insert client", err)
	}
	return nil
}

func (r *DirectoryRepository) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	var c domain.Client
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, code, created_at FROM clients WHERE id = $1
`, id).Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get client", fmt.Errorf("client %s", id))
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (r *DirectoryRepository) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, code, created_at FROM clients ORDER BY name
`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *DirectoryRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO projects (id, client_id, name, created_at) VALUES ($1,$2,$3,$4)
`, project.ID, project.ClientID, project.Name, project.CreatedAt)
	if err != nil {
		return mapConflict("insert project", err)
	}
	return nil
}

func (r *DirectoryRepository) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx, `
SELECT id, client_id, name, created_at FROM projects WHERE id = $1
`, id).Scan(&p.ID, &p.ClientID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get project", fmt.Errorf("project %s", id))
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (r *DirectoryRepository) ListProjects(ctx context.Context, clientID string) ([]domain.Project, error) {
	query := `SELECT id, client_id, name, created_at FROM projects`
	var args []any
	if clientID != "" {
		query += ` WHERE client_id = $1`
		args = append(args, clientID)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
