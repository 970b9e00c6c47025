package domain

import "time"

// Company is a tenant of the helpdesk.
type Company struct {
	ID        string
	Name      string
	Slug      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category groups tickets inside a company.
type Category struct {
	ID        string
	CompanyID string
	Name      string
	Active    bool
	CreatedAt time.Time
}
