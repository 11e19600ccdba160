package roles

// MenuVisibility tells the client which top-level sections to render. It is
// derived state, not an access-control boundary.
type MenuVisibility struct {
	Admin        bool `json:"admin"`
	Networks     bool `json:"networks"`
	TradingPoint bool `json:"trading_point"`
	Settings     bool `json:"settings"`
	Reports      bool `json:"reports"`
}

// HasPermission reports whether the user holds the permission, directly or
// through the wildcard. A nil user never has any permission.
func HasPermission(u *ResolvedUser, perm string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == PermAll || p == perm {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is an administrator: the super-admin
// role, the wildcard permission, or the user-management permission.
func IsAdmin(u *ResolvedUser) bool {
	if u == nil {
		return false
	}
	return u.Code == CodeSuperAdmin || HasPermission(u, PermAdminUsers)
}

// Visibility derives the menu flags from the resolved permission set.
// A nil user yields all-false.
func Visibility(u *ResolvedUser) MenuVisibility {
	if u == nil {
		return MenuVisibility{}
	}
	return MenuVisibility{
		Admin:        IsAdmin(u),
		Networks:     HasPermission(u, PermNetworksView),
		TradingPoint: HasPermission(u, PermTradingPointsView),
		Settings:     HasPermission(u, PermSettingsManage),
		Reports:      HasPermission(u, PermReportsView),
	}
}
