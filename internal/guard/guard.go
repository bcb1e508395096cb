// Package guard decides whether a caller may act on an organization and,
// optionally, one of its projects.
package guard

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/permissions"
)

// Kind classifies a guard failure.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthorized"
	KindMissingOrgContext Kind = "missing_organization_context"
	KindForbidden         Kind = "forbidden"
	KindProjectNotFound   Kind = "project_not_found"
	KindInternal          Kind = "internal"
)

const (
	msgUnauthorized    = "Unauthorized"
	msgMissingOrg      = "Organization context required. Please select an organization."
	msgForbidden       = "You do not have permission to perform this action in this organization."
	msgProjectNotFound = "Project not found"
	msgInternal        = "Failed to verify access"
)

// Failure is returned by Check when access is denied.
type Failure struct {
	Kind    Kind
	Status  int
	Message string
	err     error
}

func (f *Failure) Error() string {
	if f.err != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.err)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.err }

func fail(kind Kind, status int, msg string) *Failure {
	return &Failure{Kind: kind, Status: status, Message: msg}
}

// Resolver answers membership and project-ownership questions.
type Resolver interface {
	GetUserRole(ctx context.Context, userID, orgID uuid.UUID) (permissions.Role, bool, error)
	VerifyProjectInOrganization(ctx context.Context, orgID, projectID uuid.UUID) (bool, error)
}

// Request names the caller and the scope explicitly.
type Request struct {
	UserID    uuid.UUID
	OrgID     uuid.UUID
	ProjectID *uuid.UUID
}

// Context is the outcome of a successful check.
type Context struct {
	UserID    uuid.UUID
	OrgID     uuid.UUID
	Role      permissions.Role
	ProjectID *uuid.UUID
}

type options struct {
	requireAuth bool
	requireOrg  bool
	perms       []permissions.Permission
	all         bool
}

// Option adjusts a single check.
type Option func(*options)

// WithoutAuth skips authentication and every check that depends on it.
func WithoutAuth() Option {
	return func(o *options) { o.requireAuth = false }
}

// WithoutOrg only requires an authenticated user.
func WithoutOrg() Option {
	return func(o *options) { o.requireOrg = false }
}

// RequirePermission passes if the role holds any of perms.
func RequirePermission(perms ...permissions.Permission) Option {
	return func(o *options) {
		o.perms = perms
		o.all = false
	}
}

// RequireAllPermissions passes only if the role holds every one of perms.
func RequireAllPermissions(perms ...permissions.Permission) Option {
	return func(o *options) {
		o.perms = perms
		o.all = true
	}
}

type Guard struct {
	resolver Resolver
}

func New(resolver Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Check evaluates req in a fixed order: authentication, organization context,
// membership, permissions, then project ownership. It never writes state.
func (g *Guard) Check(ctx context.Context, req Request, opts ...Option) (*Context, error) {
	o := options{requireAuth: true, requireOrg: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !o.requireAuth {
		return &Context{UserID: req.UserID, OrgID: req.OrgID, ProjectID: req.ProjectID}, nil
	}
	if req.UserID == uuid.Nil {
		return nil, fail(KindUnauthenticated, http.StatusUnauthorized, msgUnauthorized)
	}
	if !o.requireOrg {
		return &Context{UserID: req.UserID}, nil
	}
	if req.OrgID == uuid.Nil {
		return nil, fail(KindMissingOrgContext, http.StatusBadRequest, msgMissingOrg)
	}

	role, found, err := g.resolver.GetUserRole(ctx, req.UserID, req.OrgID)
	if err != nil {
		log.Error().Err(err).
			Str("user_id", req.UserID.String()).
			Str("org_id", req.OrgID.String()).
			Msg("Failed to resolve membership")
		f := fail(KindInternal, http.StatusInternalServerError, msgInternal)
		f.err = err
		return nil, f
	}
	// No membership and a missing permission look identical to the caller.
	if !found || !allowed(role, o) {
		log.Debug().
			Str("user_id", req.UserID.String()).
			Str("org_id", req.OrgID.String()).
			Str("role", string(role)).
			Bool("member", found).
			Msg("Access denied")
		return nil, fail(KindForbidden, http.StatusForbidden, msgForbidden)
	}

	if req.ProjectID != nil {
		ok, err := g.resolver.VerifyProjectInOrganization(ctx, req.OrgID, *req.ProjectID)
		if err != nil {
			log.Error().Err(err).Str("project_id", req.ProjectID.String()).Msg("Failed to verify project")
			f := fail(KindInternal, http.StatusInternalServerError, msgInternal)
			f.err = err
			return nil, f
		}
		if !ok {
			return nil, fail(KindProjectNotFound, http.StatusNotFound, msgProjectNotFound)
		}
	}

	return &Context{UserID: req.UserID, OrgID: req.OrgID, Role: role, ProjectID: req.ProjectID}, nil
}

func allowed(role permissions.Role, o options) bool {
	if !role.IsValid() {
		return false
	}
	if len(o.perms) == 0 {
		return true
	}
	if o.all {
		return permissions.HasAllPermissions(role, o.perms...)
	}
	return permissions.HasAnyPermission(role, o.perms...)
}
