package models

// Role names
const (
	RoleStandardUser  = "standard_user"
	RoleAdmin         = "admin"
	RoleSystemSupport = "system_support"
	RoleSuperUser     = "super_user"
)

// Permission names
const (
	PermissionViewProfile         = "view_profile"
	PermissionUpdateProfile       = "update_profile"
	PermissionCreateUsers         = "create_users"
	PermissionViewUsers           = "view_users"
	PermissionUpdateUsers         = "update_users"
	PermissionDeleteUsers         = "delete_users"
	PermissionReceiveSystemAlerts = "receive_system_alerts"
)

type Role struct {
	ID   int64
	Name string
}

// AllRoles is the whitelist of assignable role names
var AllRoles = map[string]bool{
	RoleStandardUser:  true,
	RoleAdmin:         true,
	RoleSystemSupport: true,
	RoleSuperUser:     true,
}

// IsValidRole checks if a role exists in the whitelist
func IsValidRole(name string) bool {
	return AllRoles[name]
}

// HasPermission checks if a permission list contains the required permission
func HasPermission(permissions []string, required string) bool {
	for _, p := range permissions {
		if p == required {
			return true
		}
	}
	return false
}
