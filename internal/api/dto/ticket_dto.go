package dto

import (
	"time"

	"github.com/deskline/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CompanyID   string                `json:"company_id" validate:"required"`
	CategoryID  *string               `json:"category_id" validate:"omitempty,min=1"`
	Title       string                `json:"title" validate:"required,max=200"`
	Description string                `json:"description" validate:"required"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// TicketListQuery captures query filters for list endpoints.
type TicketListQuery struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	OwnerAgentID *string
	CategoryID   *string
	Search       *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Page         int
	PageSize     int
}

// TicketSummary response.
type TicketSummary struct {
	ID                     string                    `json:"id"`
	Code                   string                    `json:"code"`
	CompanyID              string                    `json:"company_id"`
	CategoryID             *string                   `json:"category_id"`
	OwnerAgentID           *string                   `json:"owner_agent_id"`
	Title                  string                    `json:"title"`
	Status                 domain.TicketStatus       `json:"status"`
	Priority               domain.TicketPriority     `json:"priority"`
	LastResponseAuthorType domain.ResponseAuthorType `json:"last_response_author_type"`
	CreatedAt              time.Time                 `json:"created_at"`
	UpdatedAt              time.Time                 `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	CreatorID       string           `json:"creator_id"`
	Description     string           `json:"description"`
	FirstResponseAt *time.Time       `json:"first_response_at"`
	ResolvedAt      *time.Time       `json:"resolved_at"`
	ClosedAt        *time.Time       `json:"closed_at"`
	Responses       []TicketResponse `json:"responses,omitempty"`
}

// TicketResponse represents a reply on the ticket thread.
type TicketResponse struct {
	ID         string                    `json:"id"`
	AuthorID   string                    `json:"author_id"`
	AuthorType domain.ResponseAuthorType `json:"author_type"`
	Body       string                    `json:"body"`
	CreatedAt  time.Time                 `json:"created_at"`
}

// TicketHistoryEntry is one audit trail record.
type TicketHistoryEntry struct {
	ID            string                  `json:"id"`
	ChangedByID   string                  `json:"changed_by_id"`
	ChangedByRole domain.Role             `json:"changed_by_role"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}

// CreateResponseRequest payload.
type CreateResponseRequest struct {
	Body string `json:"body" validate:"required"`
}

// TransitionRequest carries the optional note for resolve, reopen and close.
type TransitionRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	NewAgentID string `json:"new_agent_id" validate:"required"`
	Note       string `json:"note" validate:"max=2000"`
}

// NewTicketSummary maps a ticket to its list representation.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:                     t.ID,
		Code:                   t.Code,
		CompanyID:              t.CompanyID,
		CategoryID:             t.CategoryID,
		OwnerAgentID:           t.OwnerAgentID,
		Title:                  t.Title,
		Status:                 t.Status,
		Priority:               t.Priority,
		LastResponseAuthorType: t.LastResponseAuthorType,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket and its thread to the detail representation.
func NewTicketDetail(t *domain.Ticket, responses []domain.TicketResponse) TicketDetailResponse {
	detail := TicketDetailResponse{
		TicketSummary:   NewTicketSummary(t),
		CreatorID:       t.CreatorID,
		Description:     t.Description,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
		ClosedAt:        t.ClosedAt,
	}
	for _, r := range responses {
		detail.Responses = append(detail.Responses, NewTicketResponse(&r))
	}
	return detail
}

// NewTicketResponse maps a thread reply.
func NewTicketResponse(r *domain.TicketResponse) TicketResponse {
	return TicketResponse{
		ID:         r.ID,
		AuthorID:   r.AuthorID,
		AuthorType: r.AuthorType,
		Body:       r.Body,
		CreatedAt:  r.CreatedAt,
	}
}

// NewTicketHistory maps audit entries.
func NewTicketHistory(entries []domain.TicketHistory) []TicketHistoryEntry {
	out := make([]TicketHistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryEntry{
			ID:            e.ID,
			ChangedByID:   e.ChangedByID,
			ChangedByRole: e.ChangedByRole,
			ChangeType:    e.ChangeType,
			OldValue:      e.OldValue,
			NewValue:      e.NewValue,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}
