package domain

// Role enumerates the identities that can act on the platform.
type Role string

const (
	RoleUser          Role = "USER"
	RoleAgent         Role = "AGENT"
	RoleCompanyAdmin  Role = "COMPANY_ADMIN"
	RolePlatformAdmin Role = "PLATFORM_ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleCompanyAdmin, RolePlatformAdmin:
		return true
	}
	return false
}

// IsCompanyStaff reports whether the role is bound to a single company.
func (r Role) IsCompanyStaff() bool {
	return r == RoleAgent || r == RoleCompanyAdmin
}

// Actor is the authenticated identity performing an action.
// CompanyID is set for AGENT and COMPANY_ADMIN only.
type Actor struct {
	UserID    string
	Role      Role
	CompanyID *string
}

// InCompany reports whether the actor is staff scoped to companyID.
func (a Actor) InCompany(companyID string) bool {
	if !a.Role.IsCompanyStaff() || a.CompanyID == nil {
		return false
	}
	return *a.CompanyID == companyID
}

// RoleSystem marks audit entries written by automated jobs. It is never
// carried by an authenticated actor.
const RoleSystem Role = "SYSTEM"

// SystemActorID identifies automated lifecycle actions such as auto-close.
const SystemActorID = "system"
