package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates ticket urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// ResponseAuthorType records who wrote the latest response on a ticket.
type ResponseAuthorType string

const (
	ResponseAuthorNone  ResponseAuthorType = "none"
	ResponseAuthorUser  ResponseAuthorType = "user"
	ResponseAuthorAgent ResponseAuthorType = "agent"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                     string
	Code                   string
	CompanyID              string
	CreatorID              string
	OwnerAgentID           *string
	CategoryID             *string
	Title                  string
	Description            string
	Status                 TicketStatus
	Priority               TicketPriority
	LastResponseAuthorType ResponseAuthorType
	CreatedAt              time.Time
	UpdatedAt              time.Time
	FirstResponseAt        *time.Time
	ResolvedAt             *time.Time
	ClosedAt               *time.Time
}

// Clone returns a copy that shares no pointers with t.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.OwnerAgentID = cloneString(t.OwnerAgentID)
	cp.CategoryID = cloneString(t.CategoryID)
	cp.FirstResponseAt = cloneTime(t.FirstResponseAt)
	cp.ResolvedAt = cloneTime(t.ResolvedAt)
	cp.ClosedAt = cloneTime(t.ClosedAt)
	return &cp
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
