package domain

// Role defines a user's system-wide role.
// Folder access is governed by ownership and permission rows, not roles.
type Role string

const (
	RoleAdmin  Role = "admin"  // View service statistics
	RoleMember Role = "member" // Query, manage own folders
)

// ParseRole converts a string into a Role, defaulting to member
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleMember
}
