package rbac

// Role names. Keep these stable; they are part of auth contracts and of the
// role-broadcast room naming on the wire.
const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsValidRole reports whether role is one of the known marketplace roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return true
	default:
		return false
	}
}
