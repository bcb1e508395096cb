package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aliuyar1234/feedbackiq/internal/permissions"
)

// UpdateMemberRole changes targetID's role. The actor must be able to manage
// both the current and the new role, and the last owner cannot be demoted.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, actorID, targetID uuid.UUID, newRole permissions.Role) (previous permissions.Role, err error) {
	if !newRole.IsValid() {
		return "", permissions.ErrInvalidRole
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	actorRole, err := roleInTx(ctx, tx, orgID, actorID, false)
	if errors.Is(err, ErrMemberNotFound) {
		return "", ErrNotMember
	}
	if err != nil {
		return "", err
	}
	current, err := roleInTx(ctx, tx, orgID, targetID, true)
	if err != nil {
		return "", err
	}

	if !permissions.CanManageMember(actorRole, current) || !permissions.CanManageMember(actorRole, newRole) {
		return "", ErrInsufficientPermissions
	}

	if current == permissions.RoleOwner && newRole != permissions.RoleOwner {
		if err := ensureAnotherOwner(ctx, tx, orgID); err != nil {
			return "", err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE memberships SET role = $3
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, targetID, newRole); err != nil {
		return "", fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return current, nil
}

// RemoveMember deletes targetID's membership. Members may always remove
// themselves; removing someone else requires CanManageMember. The last owner
// cannot leave.
func (s *Service) RemoveMember(ctx context.Context, orgID, actorID, targetID uuid.UUID) (removed permissions.Role, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	actorRole, err := roleInTx(ctx, tx, orgID, actorID, false)
	if errors.Is(err, ErrMemberNotFound) {
		return "", ErrNotMember
	}
	if err != nil {
		return "", err
	}
	target, err := roleInTx(ctx, tx, orgID, targetID, true)
	if err != nil {
		return "", err
	}

	if actorID != targetID && !permissions.CanManageMember(actorRole, target) {
		return "", ErrInsufficientPermissions
	}
	if target == permissions.RoleOwner {
		if err := ensureAnotherOwner(ctx, tx, orgID); err != nil {
			return "", err
		}
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM memberships WHERE organization_id = $1 AND user_id = $2
	`, orgID, targetID)
	if err != nil {
		return "", fmt.Errorf("failed to remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrMemberNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return target, nil
}

func roleInTx(ctx context.Context, tx pgx.Tx, orgID, userID uuid.UUID, lock bool) (permissions.Role, error) {
	query := `SELECT role FROM memberships WHERE organization_id = $1 AND user_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var role permissions.Role
	if err := tx.QueryRow(ctx, query, orgID, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to load member role: %w", err)
	}
	return role, nil
}

// ensureAnotherOwner locks every owner row and fails with ErrLastOwner when
// fewer than two remain.
func ensureAnotherOwner(ctx context.Context, tx pgx.Tx, orgID uuid.UUID) error {
	rows, err := tx.Query(ctx, `
		SELECT user_id FROM memberships
		WHERE organization_id = $1 AND role = $2
		FOR UPDATE
	`, orgID, permissions.RoleOwner)
	if err != nil {
		return fmt.Errorf("failed to lock owners: %w", err)
	}
	defer rows.Close()

	owners := 0
	for rows.Next() {
		owners++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock owners: %w", err)
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}
