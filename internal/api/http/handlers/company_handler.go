package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskline/helpdesk-service/internal/api/dto"
	"github.com/deskline/helpdesk-service/internal/service"
)

// CompanyHandler manages company-scoped agents and categories.
type CompanyHandler struct {
	service *service.CompanyService
}

// NewCompanyHandler creates handler.
func NewCompanyHandler(companyService *service.CompanyService) *CompanyHandler {
	return &CompanyHandler{service: companyService}
}

// CreateAgent POST /company/agents.
func (h *CompanyHandler) CreateAgent(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateAgentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	agent, err := h.service.CreateAgent(c.UserContext(), actor, req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(agent)})
}

// ListAgents GET /company/agents.
func (h *CompanyHandler) ListAgents(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	agents, err := h.service.ListAgents(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(agents))
	for i := range agents {
		items = append(items, dto.NewUserResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateAgent PATCH /company/agents/:id.
func (h *CompanyHandler) UpdateAgent(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateAgentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	agent, err := h.service.SetAgentActive(c.UserContext(), actor, c.Params("id"), *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(agent)})
}

// CreateCategory POST /company/categories.
func (h *CompanyHandler) CreateCategory(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateCategoryRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	category, err := h.service.CreateCategory(c.UserContext(), actor, req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewCategoryResponse(category)})
}

// ListCategories GET /company/categories. Customers pass ?company_id=.
func (h *CompanyHandler) ListCategories(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	categories, err := h.service.ListCategories(c.UserContext(), actor, c.Query("company_id"))
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		items = append(items, dto.NewCategoryResponse(&categories[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
