package rbac

import "strings"

// Role names. Keep these stable; they are part of the backend contracts.
const (
	// Global roles carried in the access token's globalRole claim.
	GlobalUser  = "USER"
	GlobalAdmin = "ADMIN"

	// Tenant roles carried by invitations and tenant memberships.
	TenantAdmin = "TENANT_ADMIN"
	TenantUser  = "TENANT_USER"

	// ProjectMember is the only role a project grant from an invitation ever carries.
	ProjectMember = "PROJECT_MEMBER"
)

// ValidTenantRole reports whether role is one of the tenant roles.
func ValidTenantRole(role string) bool {
	return role == TenantAdmin || role == TenantUser
}

// NormalizeTenantRole upper-cases and trims role, defaulting empty input to TENANT_USER.
// The second result is false when the role is not a tenant role.
func NormalizeTenantRole(role string) (string, bool) {
	r := strings.ToUpper(strings.TrimSpace(role))
	if r == "" {
		return TenantUser, true
	}
	return r, ValidTenantRole(r)
}

// ValidGlobalRole reports whether role can be requested at registration.
func ValidGlobalRole(role string) bool {
	return role == GlobalUser || role == GlobalAdmin
}

func IsTenantAdmin(role string) bool { return role == TenantAdmin }

// DescribeTenantRole says what a tenant role lets its holder do.
func DescribeTenantRole(role string) string {
	switch {
	case IsTenantAdmin(role):
		return "full access to manage the workspace and its members"
	case role == TenantUser:
		return "can create and view projects"
	default:
		return "unknown role"
	}
}
