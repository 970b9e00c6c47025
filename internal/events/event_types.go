package events

import (
	"time"

	"github.com/deskline/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "TicketCreated"
	EventTicketResponded EventType = "TicketResponded"
	EventTicketResolved  EventType = "TicketResolved"
	EventTicketReopened  EventType = "TicketReopened"
	EventTicketClosed    EventType = "TicketClosed"
	EventTicketAssigned  EventType = "TicketAssigned"
)

// AllTypes lists every event type, in declaration order.
var AllTypes = []EventType{
	EventTicketCreated,
	EventTicketResponded,
	EventTicketResolved,
	EventTicketReopened,
	EventTicketClosed,
	EventTicketAssigned,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role"`
	CompanyID *string     `json:"company_id,omitempty"`
}

// ActorFrom converts the acting identity to event metadata.
func ActorFrom(actor domain.Actor) Actor {
	return Actor{UserID: actor.UserID, Role: actor.Role, CompanyID: actor.CompanyID}
}

// SystemActor is attached to events raised by background jobs.
func SystemActor() Actor {
	return Actor{UserID: domain.SystemActorID, Role: domain.RoleSystem}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	TicketID   string    `json:"ticket_id"`
	TicketCode string    `json:"ticket_code"`
	CompanyID  string    `json:"company_id"`
	Actor      Actor     `json:"actor"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CreatorID  string                `json:"creator_id"`
	CategoryID *string               `json:"category_id,omitempty"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
}

// TicketRespondedPayload payload.
type TicketRespondedPayload struct {
	ResponseID  string                    `json:"response_id"`
	AuthorType  domain.ResponseAuthorType `json:"author_type"`
	BodyPreview string                    `json:"body_preview"`
}

// TicketTransitionPayload is carried by resolve, reopen and close events.
type TicketTransitionPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Note      string              `json:"note,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAgentID *string `json:"previous_agent_id,omitempty"`
	NewAgentID      string  `json:"new_agent_id"`
	Note            string  `json:"note,omitempty"`
}
