package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleViewer reads progress and downloads reports.
	RoleViewer = "viewer"
	// RoleOperator uploads contacts and starts or stops campaigns.
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleViewer, RoleOperator, RoleAdmin:
		return true
	default:
		return false
	}
}
