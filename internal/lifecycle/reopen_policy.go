package lifecycle

import (
	"fmt"
	"time"

	"github.com/deskline/helpdesk-service/internal/domain"
)

// DefaultReopenWindow is how long after closing a creator may reopen a ticket.
const DefaultReopenWindow = 30 * 24 * time.Hour

// ReopenPolicy gates reopening of resolved and closed tickets.
type ReopenPolicy struct {
	resolver *Resolver
	window   time.Duration
}

// NewReopenPolicy builds a policy. A non-positive window falls back to
// DefaultReopenWindow.
func NewReopenPolicy(resolver *Resolver, window time.Duration) *ReopenPolicy {
	if resolver == nil {
		resolver = NewResolver()
	}
	if window <= 0 {
		window = DefaultReopenWindow
	}
	return &ReopenPolicy{resolver: resolver, window: window}
}

// Window returns the creator reopen window.
func (p *ReopenPolicy) Window() time.Duration {
	return p.window
}

// CanReopen decides whether actor may reopen ticket at now. Staff of the
// ticket's company are never time limited. The creator may always reopen a
// resolved ticket, and a closed one while now-closed_at <= window.
func (p *ReopenPolicy) CanReopen(actor domain.Actor, ticket *domain.Ticket, now time.Time) Decision {
	if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusClosed {
		return conflict(fmt.Sprintf("cannot reopen a ticket in status %s", ticket.Status))
	}

	decision := p.resolver.Can(actor, ActionReopen, ticket)
	if !decision.Allowed {
		return decision
	}
	if actor.Role.IsCompanyStaff() {
		return decision
	}

	if ticket.Status == domain.TicketStatusResolved {
		return allow()
	}
	if ticket.ClosedAt == nil {
		return forbid("reopen window cannot be determined for this ticket")
	}
	if now.Sub(*ticket.ClosedAt) > p.window {
		return forbid(fmt.Sprintf("tickets can only be reopened within %d days of closing", int(p.window.Hours()/24)))
	}
	return allow()
}
