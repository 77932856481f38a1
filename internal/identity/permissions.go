package identity

type Permission string

const (
	PermBookSession        Permission = "booking:create"
	PermReadBooking        Permission = "booking:read"
	PermCancelBooking      Permission = "booking:cancel"
	PermManageSessionTypes Permission = "session_types:manage"
	PermReconcilePayments  Permission = "payments:reconcile"
)

// Permissions maps a role to the permissions it grants.
type Permissions map[Role][]Permission

func DefaultPermissions() Permissions {
	return Permissions{
		RoleClient: {PermBookSession, PermReadBooking, PermCancelBooking},
		RoleBuilder: {
			PermBookSession, PermReadBooking, PermCancelBooking, PermManageSessionTypes,
		},
		RoleAdmin: {
			PermBookSession, PermReadBooking, PermCancelBooking, PermManageSessionTypes,
			PermReconcilePayments,
		},
	}
}

func HasRole(v Viewer, role Role) bool {
	if !v.IsAuthenticated() {
		return false
	}
	for _, r := range v.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p Permissions) HasPermission(v Viewer, perm Permission) bool {
	if !v.IsAuthenticated() {
		return false
	}
	for _, r := range v.Roles {
		for _, granted := range p[r] {
			if granted == perm {
				return true
			}
		}
	}
	return false
}
