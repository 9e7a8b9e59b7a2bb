package model

import "github.com/google/uuid"

// Role is the closed set of viewer roles known to the system
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSales     Role = "sales"
	RoleWarehouse Role = "warehouse"
	RoleStaff     Role = "staff"
)

// ParseRole maps a token claim onto a known Role
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleSales, RoleWarehouse, RoleStaff:
		return Role(s), true
	}
	return "", false
}

// CanViewAllData reports whether a role sees every creator's tasks (admin and sales)
func CanViewAllData(r Role) bool {
	return r == RoleAdmin || r == RoleSales
}

// Viewer is the identity a request is evaluated for
type Viewer struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}
