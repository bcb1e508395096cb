package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasPermission_Matrix(t *testing.T) {
	require.Len(t, RolePermissions(RoleOwner), 23)
	require.Len(t, RolePermissions(RoleAdmin), 21)
	require.Len(t, RolePermissions(RoleAnalyst), 14)
	require.Len(t, RolePermissions(RoleViewer), 6)

	require.True(t, HasPermission(RoleOwner, OrgDelete))
	require.False(t, HasPermission(RoleAdmin, OrgDelete))
	require.False(t, HasPermission(RoleAdmin, OrgBilling))
	require.True(t, HasPermission(RoleAdmin, OrgMembersInvite))

	require.True(t, HasPermission(RoleAnalyst, DataExport))
	require.False(t, HasPermission(RoleAnalyst, ProjectCreate))
	require.False(t, HasPermission(RoleAnalyst, OrgMembersInvite))

	require.True(t, HasPermission(RoleViewer, DataRead))
	require.False(t, HasPermission(RoleViewer, DataCreate))
	require.False(t, HasPermission(RoleViewer, InsightsCreate))
}

func TestHasPermission_UnknownRole(t *testing.T) {
	require.False(t, HasPermission(Role("superuser"), OrgRead))
	require.False(t, HasAnyPermission(Role(""), OrgRead, DataRead))
	require.Empty(t, RolePermissions(Role("superuser")))
}

func TestPermissions_NestedByPrivilege(t *testing.T) {
	chain := []Role{RoleViewer, RoleAnalyst, RoleAdmin, RoleOwner}
	for i := 0; i < len(chain)-1; i++ {
		lower, higher := chain[i], chain[i+1]
		for _, p := range RolePermissions(lower) {
			require.Truef(t, HasPermission(higher, p), "%s grants %s but %s does not", lower, p, higher)
		}
	}

	for _, p := range RolePermissions(RoleViewer) {
		for _, role := range Roles {
			require.True(t, HasPermission(role, p))
		}
	}
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	require.True(t, HasAnyPermission(RoleViewer, DataCreate, DataRead))
	require.False(t, HasAnyPermission(RoleViewer, DataCreate, DataDelete))
	require.False(t, HasAnyPermission(RoleOwner))

	require.True(t, HasAllPermissions(RoleAnalyst, DataCreate, DataRead))
	require.False(t, HasAllPermissions(RoleAnalyst, DataCreate, ProjectCreate))
	require.True(t, HasAllPermissions(RoleViewer))
}

func TestCanManageMember(t *testing.T) {
	require.False(t, CanManageMember(RoleAdmin, RoleOwner))
	require.True(t, CanManageMember(RoleOwner, RoleAdmin))
	require.True(t, CanManageMember(RoleOwner, RoleOwner))
	require.True(t, CanManageMember(RoleAdmin, RoleAdmin))
	require.True(t, CanManageMember(RoleAdmin, RoleViewer))

	for _, target := range Roles {
		require.False(t, CanManageMember(RoleViewer, target))
		require.False(t, CanManageMember(RoleAnalyst, target))
	}
}

func TestOwnerOnlyCapabilities(t *testing.T) {
	require.True(t, CanDeleteOrganization(RoleOwner))
	require.False(t, CanDeleteOrganization(RoleAdmin))
	require.True(t, CanManageBilling(RoleOwner))
	require.False(t, CanManageBilling(RoleAdmin))

	require.True(t, CanExportData(RoleAnalyst))
	require.False(t, CanExportData(RoleViewer))
	require.True(t, CanManageReports(RoleAnalyst))
	require.False(t, CanManageReports(RoleViewer))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Admin ")
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, role)

	_, err = ParseRole("member")
	require.ErrorIs(t, err, ErrInvalidRole)

	require.Greater(t, RoleOwner.Level(), RoleAdmin.Level())
	require.Greater(t, RoleAdmin.Level(), RoleAnalyst.Level())
	require.Greater(t, RoleAnalyst.Level(), RoleViewer.Level())
	require.Zero(t, Role("nope").Level())
}

func TestRolePermissions_ReturnsCopy(t *testing.T) {
	perms := RolePermissions(RoleViewer)
	perms[0] = OrgDelete
	require.False(t, HasPermission(RoleViewer, OrgDelete))
	require.Equal(t, OrgRead, RolePermissions(RoleViewer)[0])
}
