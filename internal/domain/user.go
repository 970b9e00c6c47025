package domain

import "time"

// User is an account on the platform. Customers hold RoleUser and no company;
// agents and company admins belong to exactly one company.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CompanyID    *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor builds the acting identity for this account.
func (u *User) Actor() Actor {
	actor := Actor{UserID: u.ID, Role: u.Role}
	if u.Role.IsCompanyStaff() {
		actor.CompanyID = cloneString(u.CompanyID)
	}
	return actor
}
