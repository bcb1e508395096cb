package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aliuyar1234/feedbackiq/internal/permissions"
	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

// Service provides organization, membership and invitation operations.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// NormalizeOrgName trims name and enforces its length bounds.
func NormalizeOrgName(name string) (string, error) {
	name, err := validation.Name(name, 3, 100)
	if err != nil {
		return "", ErrInvalidOrgName
	}
	return name, nil
}

// GetUserRole returns the caller's role in orgID. A missing organization and
// a missing membership both report found=false.
func (s *Service) GetUserRole(ctx context.Context, userID, orgID uuid.UUID) (permissions.Role, bool, error) {
	var role permissions.Role
	err := s.pool.QueryRow(ctx, `
		SELECT role FROM memberships
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get membership role: %w", err)
	}
	return role, true, nil
}

// VerifyOrganizationAccess reports whether userID is a member of orgID.
func (s *Service) VerifyOrganizationAccess(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	_, found, err := s.GetUserRole(ctx, userID, orgID)
	return found, err
}

// VerifyProjectInOrganization reports whether projectID belongs to orgID.
func (s *Service) VerifyProjectInOrganization(ctx context.Context, orgID, projectID uuid.UUID) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND organization_id = $2)
	`, projectID, orgID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to verify project: %w", err)
	}
	return ok, nil
}

func (s *Service) GetByID(ctx context.Context, orgID uuid.UUID) (*Org, error) {
	var org Org
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_by_user_id, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, orgID).Scan(&org.ID, &org.Name, &org.CreatedByUserID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// ListUserOrgs returns every organization userID belongs to, newest first.
func (s *Service) ListUserOrgs(ctx context.Context, userID uuid.UUID) ([]OrgWithRole, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.name, o.created_by_user_id, o.created_at, o.updated_at, m.role
		FROM organizations o
		INNER JOIN memberships m ON o.id = m.organization_id
		WHERE m.user_id = $1
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user orgs: %w", err)
	}
	defer rows.Close()

	orgs := []OrgWithRole{}
	for rows.Next() {
		var o OrgWithRole
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedByUserID, &o.CreatedAt, &o.UpdatedAt, &o.Role); err != nil {
			return nil, fmt.Errorf("failed to scan org: %w", err)
		}
		orgs = append(orgs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating org rows: %w", err)
	}
	return orgs, nil
}

// CreateWithOwner creates an organization and makes userID its owner in one
// transaction.
func (s *Service) CreateWithOwner(ctx context.Context, name string, userID uuid.UUID) (*Org, error) {
	name, err := NormalizeOrgName(name)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var org Org
	err = tx.QueryRow(ctx, `
		INSERT INTO organizations (name, created_by_user_id)
		VALUES ($1, $2)
		RETURNING id, name, created_by_user_id, created_at, updated_at
	`, name, userID).Scan(&org.ID, &org.Name, &org.CreatedByUserID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO memberships (organization_id, user_id, role)
		VALUES ($1, $2, $3)
	`, org.ID, userID, permissions.RoleOwner); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &org, nil
}

func (s *Service) Update(ctx context.Context, orgID uuid.UUID, name string) (*Org, error) {
	name, err := NormalizeOrgName(name)
	if err != nil {
		return nil, err
	}

	var org Org
	err = s.pool.QueryRow(ctx, `
		UPDATE organizations SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, created_by_user_id, created_at, updated_at
	`, orgID, name).Scan(&org.ID, &org.Name, &org.CreatedByUserID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return &org, nil
}

// Delete removes the organization; memberships, invites, projects, feedback
// and reports cascade.
func (s *Service) Delete(ctx context.Context, orgID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrgNotFound
	}
	return nil
}

// ListMembers returns the members of orgID, oldest first.
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]MemberInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.user_id, u.email, m.role, m.created_at
		FROM memberships m
		INNER JOIN users u ON m.user_id = u.id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []MemberInfo{}
	for rows.Next() {
		var m MemberInfo
		if err := rows.Scan(&m.UserID, &m.Email, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}
