package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

// Service provides project operations. Every method is scoped by
// organization so a project ID from another tenant behaves as missing.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) Create(ctx context.Context, orgID uuid.UUID, name string, userID uuid.UUID) (*Project, error) {
	name, err := validation.Name(name, 3, 100)
	if err != nil {
		return nil, err
	}

	var p Project
	err = s.pool.QueryRow(ctx, `
		INSERT INTO projects (organization_id, name, created_by_user_id)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, name, created_by_user_id, created_at
	`, orgID, name, userID).Scan(&p.ID, &p.OrgID, &p.Name, &p.CreatedByUserID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrNameConflict
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, orgID, projectID uuid.UUID) (*Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, created_by_user_id, created_at
		FROM projects
		WHERE id = $1 AND organization_id = $2
	`, projectID, orgID).Scan(&p.ID, &p.OrgID, &p.Name, &p.CreatedByUserID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// List returns the projects of orgID ordered by name.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, name, created_by_user_id, created_at
		FROM projects
		WHERE organization_id = $1
		ORDER BY name ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	out := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.CreatedByUserID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return out, nil
}

// Delete removes a project. Its feedback stays with the organization with
// project_id cleared.
func (s *Service) Delete(ctx context.Context, orgID, projectID uuid.UUID) (*Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND organization_id = $2
		RETURNING id, organization_id, name, created_by_user_id, created_at
	`, projectID, orgID).Scan(&p.ID, &p.OrgID, &p.Name, &p.CreatedByUserID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to delete project: %w", err)
	}
	return &p, nil
}
