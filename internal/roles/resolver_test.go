package roles_test

import (
	"reflect"
	"testing"

	"github.com/fuelgrid/gridauth/internal/models"
	"github.com/fuelgrid/gridauth/internal/roles"
)

func userWithRoles(assignments ...models.RoleAssignment) *models.User {
	return &models.User{
		ID:    "u-1",
		Email: "user@example.com",
		Roles: assignments,
	}
}

func TestResolve_CodeTakesPrecedenceOverName(t *testing.T) {
	u := userWithRoles(models.RoleAssignment{
		Role: models.Role{ID: 7, Code: "operator", Name: "Суперадминистратор"},
	})

	got := roles.Resolve(u)
	if got.Code != roles.CodeOperator {
		t.Errorf("Code = %q, want %q", got.Code, roles.CodeOperator)
	}
	if got.RoleID != 7 {
		t.Errorf("RoleID = %d, want 7", got.RoleID)
	}
}

func TestResolve_NameMapping(t *testing.T) {
	tests := []struct {
		name     string
		roleName string
		want     string
	}{
		{"super admin", "Суперадминистратор", roles.CodeSuperAdmin},
		{"network admin", "Администратор сети", roles.CodeNetworkAdmin},
		{"point manager", "Менеджер торговой точки", roles.CodePointManager},
		{"manager", "Менеджер", roles.CodeManager},
		{"operator", "Оператор", roles.CodeOperator},
		{"bto manager", "Менеджер БТО", roles.CodeBTOManager},
		{"driver", "Водитель", roles.CodeDriver},
		{"unmapped name stays raw", "Кладовщик", "Кладовщик"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := userWithRoles(models.RoleAssignment{
				Role: models.Role{ID: 1, Name: tt.roleName},
			})
			if got := roles.Resolve(u); got.Code != tt.want {
				t.Errorf("Resolve(%q).Code = %q, want %q", tt.roleName, got.Code, tt.want)
			}
		})
	}
}

func TestResolve_SuperAdminScenario(t *testing.T) {
	u := userWithRoles(models.RoleAssignment{
		Role: models.Role{ID: 1, Name: "Суперадминистратор"},
	})

	resolved := roles.ResolveUser(u)
	if resolved.Code != roles.CodeSuperAdmin {
		t.Fatalf("Code = %q, want %q", resolved.Code, roles.CodeSuperAdmin)
	}
	if !roles.IsAdmin(resolved) {
		t.Error("IsAdmin() = false, want true")
	}
}

func TestResolve_NoAssignments(t *testing.T) {
	got := roles.Resolve(userWithRoles())

	if got.Code != roles.CodeUser {
		t.Errorf("Code = %q, want %q", got.Code, roles.CodeUser)
	}
	if got.RoleID != 0 {
		t.Errorf("RoleID = %d, want 0", got.RoleID)
	}
	if len(got.Permissions) != 0 {
		t.Errorf("Permissions = %v, want empty", got.Permissions)
	}

	resolved := roles.ResolveUser(userWithRoles())
	if roles.HasPermission(resolved, roles.PermTanksManage) {
		t.Error("HasPermission(tanks.manage) = true for user with no roles, want false")
	}
}

func TestResolve_FirstAssignmentWins(t *testing.T) {
	u := userWithRoles(
		models.RoleAssignment{Position: 0, Role: models.Role{ID: 2, Code: roles.CodeDriver}},
		models.RoleAssignment{Position: 1, Role: models.Role{ID: 1, Code: roles.CodeSuperAdmin}},
	)

	got := roles.Resolve(u)
	if got.Code != roles.CodeDriver {
		t.Errorf("Code = %q, want %q (primary role only, no merge)", got.Code, roles.CodeDriver)
	}
	if roles.HasPermission(roles.ResolveUser(u), roles.PermAdminUsers) {
		t.Error("secondary role's permissions leaked into the resolved set")
	}
}

func TestResolve_ExplicitPermissionsOverrideBundle(t *testing.T) {
	u := userWithRoles(models.RoleAssignment{
		Role: models.Role{
			ID:          3,
			Code:        roles.CodeOperator,
			Permissions: []string{roles.PermReportsView},
		},
	})

	got := roles.Resolve(u)
	if !reflect.DeepEqual(got.Permissions, []string{roles.PermReportsView}) {
		t.Errorf("Permissions = %v, want explicit list only", got.Permissions)
	}
}

func TestResolve_EmptyPermissionsFallBackToBundle(t *testing.T) {
	u := userWithRoles(models.RoleAssignment{
		Role: models.Role{ID: 4, Code: roles.CodeSuperAdmin},
	})

	got := roles.Resolve(u)
	if !reflect.DeepEqual(got.Permissions, []string{roles.PermAll}) {
		t.Errorf("Permissions = %v, want wildcard bundle", got.Permissions)
	}
}

func TestResolve_UnknownCodeFallsBackToUserBundle(t *testing.T) {
	u := userWithRoles(models.RoleAssignment{
		Role: models.Role{ID: 5, Code: "janitor"},
	})

	got := roles.Resolve(u)
	want := roles.DefaultBundle(roles.CodeUser)
	if !reflect.DeepEqual(got.Permissions, want) {
		t.Errorf("Permissions = %v, want default user bundle %v", got.Permissions, want)
	}
}

func TestDisplayName(t *testing.T) {
	if got := roles.DisplayName(roles.CodeSuperAdmin); got != "Суперадминистратор" {
		t.Errorf("DisplayName(super_admin) = %q", got)
	}
	if got := roles.DisplayName("nonexistent"); got != "Пользователь" {
		t.Errorf("DisplayName(unknown) = %q, want fallback", got)
	}
}
