package permissions

import (
	"errors"
	"strings"
)

// Role is a member's role within one organization.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
	RoleViewer  Role = "viewer"
)

// ErrInvalidRole is returned by ParseRole for names outside the four known roles.
var ErrInvalidRole = errors.New("invalid role")

// Roles lists every role from most to least privileged.
var Roles = []Role{RoleOwner, RoleAdmin, RoleAnalyst, RoleViewer}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleAnalyst, RoleViewer:
		return true
	}
	return false
}

// Level returns the privilege rank of the role, 0 for unknown roles.
func (r Role) Level() int {
	return roleLevel[r]
}

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.IsValid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

var roleLevel = map[Role]int{
	RoleViewer:  1,
	RoleAnalyst: 2,
	RoleAdmin:   3,
	RoleOwner:   4,
}

// Permission is a named capability token such as "data:export".
type Permission string

const (
	OrgRead          Permission = "org:read"
	OrgUpdate        Permission = "org:update"
	OrgDelete        Permission = "org:delete"
	OrgBilling       Permission = "org:billing"
	OrgMembersRead   Permission = "org:members:read"
	OrgMembersInvite Permission = "org:members:invite"
	OrgMembersUpdate Permission = "org:members:update"
	OrgMembersRemove Permission = "org:members:remove"

	ProjectCreate Permission = "project:create"
	ProjectRead   Permission = "project:read"
	ProjectUpdate Permission = "project:update"
	ProjectDelete Permission = "project:delete"

	DataRead   Permission = "data:read"
	DataCreate Permission = "data:create"
	DataUpdate Permission = "data:update"
	DataDelete Permission = "data:delete"
	DataExport Permission = "data:export"

	InsightsRead   Permission = "insights:read"
	InsightsCreate Permission = "insights:create"

	ReportsRead   Permission = "reports:read"
	ReportsCreate Permission = "reports:create"
	ReportsUpdate Permission = "reports:update"
	ReportsDelete Permission = "reports:delete"
)

var (
	dataAll     = []Permission{DataRead, DataCreate, DataUpdate, DataDelete, DataExport}
	insightsAll = []Permission{InsightsRead, InsightsCreate}
	reportsAll  = []Permission{ReportsRead, ReportsCreate, ReportsUpdate, ReportsDelete}
	projectsAll = []Permission{ProjectCreate, ProjectRead, ProjectUpdate, ProjectDelete}
	membersAll  = []Permission{OrgMembersRead, OrgMembersInvite, OrgMembersUpdate, OrgMembersRemove}
)

var rolePermissions = map[Role][]Permission{
	RoleOwner: concat(
		[]Permission{OrgRead, OrgUpdate, OrgDelete, OrgBilling},
		membersAll, projectsAll, dataAll, insightsAll, reportsAll,
	),
	RoleAdmin: concat(
		[]Permission{OrgRead, OrgUpdate},
		membersAll, projectsAll, dataAll, insightsAll, reportsAll,
	),
	RoleAnalyst: concat(
		[]Permission{OrgRead, OrgMembersRead, ProjectRead},
		dataAll, insightsAll, reportsAll,
	),
	RoleViewer: {
		OrgRead, OrgMembersRead, ProjectRead, DataRead, InsightsRead, ReportsRead,
	},
}

// permissionSets is built once from rolePermissions and never mutated.
var permissionSets = func() map[Role]map[Permission]struct{} {
	sets := make(map[Role]map[Permission]struct{}, len(rolePermissions))
	for role, perms := range rolePermissions {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		sets[role] = set
	}
	return sets
}()

func concat(groups ...[]Permission) []Permission {
	var out []Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// HasPermission reports whether role grants permission.
func HasPermission(role Role, permission Permission) bool {
	_, ok := permissionSets[role][permission]
	return ok
}

// HasAnyPermission reports whether role grants at least one of perms.
func HasAnyPermission(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether role grants every one of perms.
func HasAllPermissions(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}

// RolePermissions returns a copy of the permissions granted to role.
func RolePermissions(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// CanManageMember reports whether a member acting with actingRole may invite,
// update or remove a member holding targetRole. Owners manage everyone, admins
// manage everyone except owners.
func CanManageMember(actingRole, targetRole Role) bool {
	switch actingRole {
	case RoleOwner:
		return true
	case RoleAdmin:
		return targetRole != RoleOwner
	}
	return false
}

func CanDeleteOrganization(role Role) bool {
	return role == RoleOwner
}

func CanManageBilling(role Role) bool {
	return role == RoleOwner
}

func CanExportData(role Role) bool {
	return HasPermission(role, DataExport)
}

func CanManageReports(role Role) bool {
	return HasAnyPermission(role, ReportsCreate, ReportsUpdate, ReportsDelete)
}
