package orgs

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/notify"
	"github.com/aliuyar1234/feedbackiq/internal/permissions"
)

const InviteTTL = 24 * time.Hour

// InviteStatus is the outcome of resolving a raw invitation token.
type InviteStatus string

const (
	InviteOK       InviteStatus = "ok"
	InviteNotFound InviteStatus = "not_found"
	InviteExpired  InviteStatus = "expired"
	InviteAccepted InviteStatus = "accepted"
)

// ResolvedInvite is what an invitee may see before accepting.
type ResolvedInvite struct {
	ID        uuid.UUID        `json:"id"`
	OrgID     uuid.UUID        `json:"organization_id"`
	OrgName   string           `json:"organization_name"`
	Role      permissions.Role `json:"role"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type Resolution struct {
	Status InviteStatus    `json:"status"`
	Invite *ResolvedInvite `json:"invite,omitempty"`
}

// classifyInvite orders the checks: missing, accepted, expired, ok. An
// accepted invite stays accepted after its expiry passes. An invite is still
// valid at the exact instant of expires_at.
func classifyInvite(found bool, expiresAt time.Time, acceptedAt *time.Time, now time.Time) InviteStatus {
	switch {
	case !found:
		return InviteNotFound
	case acceptedAt != nil:
		return InviteAccepted
	case now.After(expiresAt):
		return InviteExpired
	default:
		return InviteOK
	}
}

func statusError(status InviteStatus) error {
	switch status {
	case InviteAccepted:
		return ErrInviteAlreadyAccepted
	case InviteExpired:
		return ErrInviteExpired
	default:
		return ErrInviteNotFound
	}
}

// NormalizeInviteEmail trims, lowercases and validates an invitee address.
func NormalizeInviteEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > 320 {
		return "", ErrInvalidInviteEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidInviteEmail
	}
	return email, nil
}

// Invites manages the invitation lifecycle.
type Invites struct {
	pool     *pgxpool.Pool
	orgs     *Service
	notifier notify.Notifier
	now      func() time.Time
}

func NewInvites(pool *pgxpool.Pool, notifier notify.Notifier) *Invites {
	return &Invites{
		pool:     pool,
		orgs:     NewService(pool),
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateInvite stores a new invitation, supersedes any pending one for the
// same address and sends it. If delivery fails the invitation is deleted and
// ErrInviteDelivery is returned.
func (s *Invites) CreateInvite(ctx context.Context, orgID, actorID uuid.UUID, email string, role permissions.Role) (*Invite, string, error) {
	email, err := NormalizeInviteEmail(email)
	if err != nil {
		return nil, "", err
	}
	if !role.IsValid() {
		return nil, "", permissions.ErrInvalidRole
	}

	actorRole, found, err := s.orgs.GetUserRole(ctx, actorID, orgID)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", ErrNotMember
	}
	if !permissions.CanManageMember(actorRole, role) {
		return nil, "", ErrInsufficientPermissions
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, "", err
	}

	invite, token, err := s.insertInvite(ctx, orgID, actorID, email, role)
	if err != nil {
		return nil, "", err
	}

	sendErr := s.notifier.SendInvite(ctx, notify.InviteMessage{
		Email:     invite.Email,
		OrgName:   org.Name,
		Role:      string(invite.Role),
		Token:     token,
		ExpiresAt: invite.ExpiresAt,
	})
	if sendErr != nil {
		// The caller may already be gone; the cleanup must still run.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := s.pool.Exec(cleanupCtx, `DELETE FROM invites WHERE id = $1`, invite.ID); err != nil {
			log.Error().Err(err).Str("invite_id", invite.ID.String()).Msg("Failed to delete undelivered invite")
		}
		return nil, "", fmt.Errorf("%w: %v", ErrInviteDelivery, sendErr)
	}

	return invite, token, nil
}

func (s *Invites) insertInvite(ctx context.Context, orgID, actorID uuid.UUID, email string, role permissions.Role) (*Invite, string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var member bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM memberships m
		  INNER JOIN users u ON u.id = m.user_id
		  WHERE m.organization_id = $1 AND lower(u.email) = $2
		)
	`, orgID, email).Scan(&member); err != nil {
		return nil, "", fmt.Errorf("failed to check membership: %w", err)
	}
	if member {
		return nil, "", ErrAlreadyMember
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM invites
		WHERE organization_id = $1 AND email = $2 AND accepted_at IS NULL
	`, orgID, email); err != nil {
		return nil, "", fmt.Errorf("failed to supersede pending invites: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		token, tokenHash, err := GenerateInviteToken()
		if err != nil {
			return nil, "", err
		}

		// A savepoint keeps the transaction usable after a hash collision.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create savepoint: %w", err)
		}

		var inv Invite
		err = sp.QueryRow(ctx, `
			INSERT INTO invites (organization_id, email, role, invited_by, token_hash, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, organization_id, email, role, invited_by, created_at, expires_at
		`, orgID, email, role, actorID, tokenHash, s.now().UTC().Add(InviteTTL)).Scan(
			&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.InvitedByUserID, &inv.CreatedAt, &inv.ExpiresAt,
		)
		if err == nil {
			if err := sp.Commit(ctx); err != nil {
				return nil, "", fmt.Errorf("failed to release savepoint: %w", err)
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, "", fmt.Errorf("failed to commit transaction: %w", err)
			}
			return &inv, token, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			_ = sp.Rollback(ctx)
			continue
		}
		return nil, "", fmt.Errorf("failed to create invite: %w", err)
	}

	return nil, "", fmt.Errorf("failed to create invite: token collision retry exhausted")
}

// ResolveInvite reports the state of rawToken without changing anything.
// Malformed tokens resolve as not found.
func (s *Invites) ResolveInvite(ctx context.Context, rawToken string) (Resolution, error) {
	if !ValidateInviteTokenFormat(rawToken) {
		return Resolution{Status: InviteNotFound}, nil
	}

	var (
		inv        ResolvedInvite
		acceptedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT i.id, i.organization_id, o.name, i.role, i.expires_at, i.accepted_at
		FROM invites i
		INNER JOIN organizations o ON o.id = i.organization_id
		WHERE i.token_hash = $1
	`, HashInviteToken(rawToken)).Scan(&inv.ID, &inv.OrgID, &inv.OrgName, &inv.Role, &inv.ExpiresAt, &acceptedAt)
	found := true
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Resolution{}, fmt.Errorf("failed to resolve invite: %w", err)
		}
		found = false
	}

	status := classifyInvite(found, inv.ExpiresAt, acceptedAt, s.now())
	if status != InviteOK {
		return Resolution{Status: status}, nil
	}
	return Resolution{Status: InviteOK, Invite: &inv}, nil
}

// AcceptInvite consumes rawToken for userID and creates the membership. The
// conditional update makes acceptance single-use under concurrency.
func (s *Invites) AcceptInvite(ctx context.Context, rawToken string, userID uuid.UUID) (inviteID, orgID uuid.UUID, role permissions.Role, err error) {
	if !ValidateInviteTokenFormat(rawToken) {
		return uuid.Nil, uuid.Nil, "", ErrInviteNotFound
	}
	tokenHash := HashInviteToken(rawToken)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var email string
	err = tx.QueryRow(ctx, `
		UPDATE invites
		SET accepted_at = NOW(), accepted_by = $2
		WHERE token_hash = $1 AND accepted_at IS NULL AND expires_at >= NOW()
		RETURNING id, organization_id, email, role
	`, tokenHash, userID).Scan(&inviteID, &orgID, &email, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, "", s.classifyFailedAccept(ctx, tx, tokenHash)
		}
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to accept invite: %w", err)
	}

	var userEmail string
	if err := tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, uuid.Nil, "", ErrInviteEmailMismatch
		}
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to load user: %w", err)
	}
	if !strings.EqualFold(userEmail, email) {
		return uuid.Nil, uuid.Nil, "", ErrInviteEmailMismatch
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO memberships (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`, orgID, userID, role); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to create membership: %w", err)
	}

	// An existing membership keeps its role.
	if err := tx.QueryRow(ctx, `
		SELECT role FROM memberships WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID).Scan(&role); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to load membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inviteID, orgID, role, nil
}

func (s *Invites) classifyFailedAccept(ctx context.Context, tx pgx.Tx, tokenHash []byte) error {
	var (
		expiresAt  time.Time
		acceptedAt *time.Time
	)
	err := tx.QueryRow(ctx, `
		SELECT expires_at, accepted_at FROM invites WHERE token_hash = $1
	`, tokenHash).Scan(&expiresAt, &acceptedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to load invite: %w", err)
	}
	return statusError(classifyInvite(err == nil, expiresAt, acceptedAt, s.now()))
}

// ListInvites returns the pending, unexpired invitations of orgID.
func (s *Invites) ListInvites(ctx context.Context, orgID uuid.UUID) ([]InviteListItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.organization_id, i.email, i.role, i.invited_by, i.created_at, i.expires_at,
		       COALESCE(u.email, '')
		FROM invites i
		LEFT JOIN users u ON u.id = i.invited_by
		WHERE i.organization_id = $1
		  AND i.accepted_at IS NULL
		  AND i.expires_at >= NOW()
		ORDER BY i.created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	invites := []InviteListItem{}
	for rows.Next() {
		var inv InviteListItem
		if err := rows.Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.InvitedByUserID,
			&inv.CreatedAt, &inv.ExpiresAt, &inv.InvitedByEmail); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invites: %w", err)
	}
	return invites, nil
}

// RevokeInvite deletes a pending invitation. The actor must be able to
// manage the role the invitation grants.
func (s *Invites) RevokeInvite(ctx context.Context, orgID, actorID, inviteID uuid.UUID) (*Invite, error) {
	actorRole, found, err := s.orgs.GetUserRole(ctx, actorID, orgID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotMember
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var inv Invite
	err = tx.QueryRow(ctx, `
		SELECT id, organization_id, email, role, invited_by, created_at, expires_at
		FROM invites
		WHERE id = $1 AND organization_id = $2 AND accepted_at IS NULL
		FOR UPDATE
	`, inviteID, orgID).Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.Role, &inv.InvitedByUserID, &inv.CreatedAt, &inv.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	if !permissions.CanManageMember(actorRole, inv.Role) {
		return nil, ErrInsufficientPermissions
	}

	if _, err := tx.Exec(ctx, `DELETE FROM invites WHERE id = $1`, inv.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke invite: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &inv, nil
}
