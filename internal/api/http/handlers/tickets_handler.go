package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/deskline/helpdesk-service/internal/api/dto"
	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/service"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

// TicketsHandler serves ticket endpoints for customers and staff alike.
// Who may do what is decided by the services from the request actor.
type TicketsHandler struct {
	service    *service.TicketService
	assignment *service.AssignmentService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, assignmentService *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, assignment: assignmentService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		CompanyID:   req.CompanyID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, nil)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), actor, service.TicketListFilter{
		Statuses:     query.Statuses,
		Priorities:   query.Priorities,
		OwnerAgentID: query.OwnerAgentID,
		CategoryID:   query.CategoryID,
		SearchTerm:   query.Search,
		CreatedFrom:  query.CreatedFrom,
		CreatedTo:    query.CreatedTo,
		Limit:        query.PageSize,
		Offset:       (query.Page - 1) * query.PageSize,
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items, "page": query.Page, "page_size": query.PageSize})
}

// GetTicket GET /tickets/:code.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticket, responses, err := h.service.GetTicket(c.UserContext(), actor, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, responses)})
}

// ListHistory GET /tickets/:code/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	entries, err := h.service.ListHistory(c.UserContext(), actor, c.Params("code"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistory(entries)})
}

// AddResponse POST /tickets/:code/responses.
func (h *TicketsHandler) AddResponse(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateResponseRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	response, err := h.service.AddResponse(c.UserContext(), actor, c.Params("code"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(response)})
}

// Resolve POST /tickets/:code/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.service.Resolve)
}

// Reopen POST /tickets/:code/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	return h.transition(c, h.service.Reopen)
}

// Close POST /tickets/:code/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	return h.transition(c, h.service.Close)
}

type transitionFunc func(ctx context.Context, actor domain.Actor, code, note string) (*domain.Ticket, error)

func (h *TicketsHandler) transition(c *fiber.Ctx, apply transitionFunc) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := apply(c.UserContext(), actor, c.Params("code"), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, nil)})
}

// Assign POST /tickets/:code/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignment.Assign(c.UserContext(), actor, c.Params("code"), req.NewAgentID, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, nil)})
}

func parseTicketQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	query := dto.TicketListQuery{}
	for _, part := range splitList(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitList(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(part))
	}
	if owner := strings.TrimSpace(c.Query("owner_agent_id")); owner != "" {
		query.OwnerAgentID = &owner
	}
	if category := strings.TrimSpace(c.Query("category_id")); category != "" {
		query.CategoryID = &category
	}
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		query.Search = &search
	}
	var err error
	if query.CreatedFrom, err = parseTime("created_from", c.Query("created_from")); err != nil {
		return query, err
	}
	if query.CreatedTo, err = parseTime("created_to", c.Query("created_to")); err != nil {
		return query, err
	}
	query.Page, query.PageSize = pageParams(c)
	return query, nil
}

// maxPageSize matches the cap the repositories apply to list limits.
const maxPageSize = 100

func pageParams(c *fiber.Ctx) (page, pageSize int) {
	page = parseInt(c.Query("page"), 1)
	pageSize = parseInt(c.Query("page_size"), 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func pagination(c *fiber.Ctx) (int, int) {
	page, pageSize := pageParams(c)
	return pageSize, (page - 1) * pageSize
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTime(field, val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewFieldError(field, "must be an RFC3339 timestamp")
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
