package orgs

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aliuyar1234/feedbackiq/internal/permissions"
)

var (
	ErrOrgNotFound             = errors.New("organization not found")
	ErrInvalidOrgName          = errors.New("organization name must be between 3 and 100 characters")
	ErrNotMember               = errors.New("user is not a member of this organization")
	ErrMemberNotFound          = errors.New("member not found")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrLastOwner               = errors.New("organization must keep at least one owner")

	ErrAlreadyMember         = errors.New("user is already a member of this organization")
	ErrInvalidInviteEmail    = errors.New("invalid email address")
	ErrInviteNotFound        = errors.New("invite not found")
	ErrInviteExpired         = errors.New("invite expired")
	ErrInviteAlreadyAccepted = errors.New("invite already accepted")
	ErrInviteEmailMismatch   = errors.New("invite email does not match user")
	ErrInviteDelivery        = errors.New("failed to deliver invitation")
)

// Org is a tenant. Everything else is scoped to one.
type Org struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	CreatedByUserID uuid.UUID `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OrgWithRole is an organization as seen by one of its members.
type OrgWithRole struct {
	Org
	Role permissions.Role `json:"role"`
}

type MemberInfo struct {
	UserID    uuid.UUID        `json:"user_id"`
	Email     string           `json:"email"`
	Role      permissions.Role `json:"role"`
	CreatedAt time.Time        `json:"created_at"`
}

type Invite struct {
	ID              uuid.UUID        `json:"id"`
	OrgID           uuid.UUID        `json:"organization_id"`
	Email           string           `json:"email"`
	Role            permissions.Role `json:"role"`
	InvitedByUserID uuid.UUID        `json:"invited_by"`
	CreatedAt       time.Time        `json:"created_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
}

type InviteListItem struct {
	Invite
	InvitedByEmail string `json:"invited_by_email,omitempty"`
}
