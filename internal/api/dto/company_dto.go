package dto

import (
	"time"

	"github.com/deskline/helpdesk-service/internal/domain"
)

// CreateAgentRequest payload.
type CreateAgentRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateAgentRequest toggles an agent's active flag.
type UpdateAgentRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// CreateCategoryRequest payload.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CompanyResponse response.
type CompanyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryResponse response.
type CategoryResponse struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewCompanyResponse(c *domain.Company) *CompanyResponse {
	if c == nil {
		return nil
	}
	return &CompanyResponse{ID: c.ID, Name: c.Name, Slug: c.Slug, Active: c.Active, CreatedAt: c.CreatedAt}
}

func NewCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, CompanyID: c.CompanyID, Name: c.Name, Active: c.Active, CreatedAt: c.CreatedAt}
}
