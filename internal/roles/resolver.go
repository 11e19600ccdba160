package roles

import (
	"github.com/fuelgrid/gridauth/internal/models"
)

// Canonical role codes.
const (
	CodeSuperAdmin   = "super_admin"
	CodeNetworkAdmin = "network_admin"
	CodePointManager = "point_manager"
	CodeManager      = "manager"
	CodeOperator     = "operator"
	CodeBTOManager   = "bto_manager"
	CodeDriver       = "driver"
	CodeUser         = "user"
)

// Permission identifiers. PermAll is a wildcard implying every permission.
const (
	PermAll                 = "all"
	PermAdminUsers          = "admin.users.manage"
	PermNetworksView        = "networks.view"
	PermNetworksManage      = "networks.manage"
	PermTradingPointsView   = "trading_points.view"
	PermTradingPointsManage = "trading_points.manage"
	PermEquipmentView       = "equipment.view"
	PermEquipmentManage     = "equipment.manage"
	PermTanksManage         = "tanks.manage"
	PermComponentsView      = "components.view"
	PermComponentsManage    = "components.manage"
	PermOperationsView      = "operations.view"
	PermOperationsManage    = "operations.manage"
	PermReportsView         = "reports.view"
	PermSettingsManage      = "settings.manage"
)

// nameToCode maps legacy display names to canonical codes for roles created
// before the code column existed.
var nameToCode = map[string]string{
	"Суперадминистратор":       CodeSuperAdmin,
	"Администратор сети":       CodeNetworkAdmin,
	"Менеджер торговой точки":  CodePointManager,
	"Менеджер":                 CodeManager,
	"Оператор":                 CodeOperator,
	"Менеджер БТО":             CodeBTOManager,
	"Водитель":                 CodeDriver,
	"Пользователь":             CodeUser,
}

// displayNames is the reverse table used for UI labels.
var displayNames = map[string]string{
	CodeSuperAdmin:   "Суперадминистратор",
	CodeNetworkAdmin: "Администратор сети",
	CodePointManager: "Менеджер торговой точки",
	CodeManager:      "Менеджер",
	CodeOperator:     "Оператор",
	CodeBTOManager:   "Менеджер БТО",
	CodeDriver:       "Водитель",
	CodeUser:         "Пользователь",
}

// bundles are the default permission sets per canonical code, used when a
// role record carries no explicit permission list.
var bundles = map[string][]string{
	CodeSuperAdmin: {PermAll},
	CodeNetworkAdmin: {
		PermNetworksView, PermNetworksManage,
		PermTradingPointsView, PermTradingPointsManage,
		PermEquipmentView, PermEquipmentManage,
		PermTanksManage, PermOperationsView,
		PermReportsView, PermSettingsManage,
	},
	CodePointManager: {
		PermTradingPointsView, PermEquipmentView, PermTanksManage,
		PermOperationsView, PermOperationsManage, PermReportsView,
	},
	CodeManager: {
		PermTradingPointsView, PermEquipmentView, PermTanksManage,
		PermOperationsView, PermOperationsManage, PermReportsView,
	},
	CodeOperator: {
		PermTradingPointsView, PermOperationsView, PermOperationsManage,
	},
	CodeBTOManager: {
		PermEquipmentView, PermEquipmentManage,
		PermComponentsView, PermComponentsManage, PermReportsView,
	},
	CodeDriver: {PermOperationsView},
	CodeUser:   {PermNetworksView, PermTradingPointsView},
}

// Resolved is the authorization view of a user: one primary role code and a
// flat permission set.
type Resolved struct {
	Code        string
	RoleID      int64
	Permissions []string
}

// ResolvedUser pairs a stored user record with its resolved role. It is the
// unit every permission query operates on.
type ResolvedUser struct {
	User *models.User
	Resolved
}

// Resolve maps a raw user record to its primary role code, role ID and
// permission set. Only the first role assignment counts; permissions of
// secondary assignments are never merged. A user with no assignments
// resolves to the default "user" code with an empty permission set.
func Resolve(u *models.User) Resolved {
	if u == nil || len(u.Roles) == 0 {
		return Resolved{Code: CodeUser}
	}

	role := u.Roles[0].Role

	code := role.Code
	if code == "" {
		if mapped, ok := nameToCode[role.Name]; ok {
			code = mapped
		} else {
			code = role.Name
		}
	}

	perms := role.Permissions
	if len(perms) == 0 {
		perms = DefaultBundle(code)
	}

	return Resolved{
		Code:        code,
		RoleID:      role.ID,
		Permissions: append([]string(nil), perms...),
	}
}

// ResolveUser is Resolve plus the record itself.
func ResolveUser(u *models.User) *ResolvedUser {
	if u == nil {
		return nil
	}
	return &ResolvedUser{User: u, Resolved: Resolve(u)}
}

// DefaultBundle returns the static permission bundle for a role code.
// Unknown codes fall back to the default user bundle.
func DefaultBundle(code string) []string {
	b, ok := bundles[code]
	if !ok {
		b = bundles[CodeUser]
	}
	return append([]string(nil), b...)
}

// DisplayName returns the UI label for a role code.
func DisplayName(code string) string {
	if name, ok := displayNames[code]; ok {
		return name
	}
	return "Пользователь"
}
