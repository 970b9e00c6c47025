package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/deskline/helpdesk-service/internal/domain"
)

func closedTicket(now time.Time, age time.Duration) *domain.Ticket {
	ticket := newTicket(domain.TicketStatusClosed)
	closedAt := now.Add(-age)
	ticket.ClosedAt = &closedAt
	ticket.ResolvedAt = &closedAt
	return ticket
}

func TestReopenPolicyState(t *testing.T) {
	p := NewReopenPolicy(nil, 0)
	now := time.Now()
	for _, status := range []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusPending} {
		for _, actor := range []domain.Actor{
			staff(domain.RoleAgent, "acme"),
			{UserID: "customer-1", Role: domain.RoleUser},
		} {
			d := p.CanReopen(actor, newTicket(status), now)
			assert.False(t, d.Allowed)
			assert.Equal(t, DenialStateConflict, d.Kind)
		}
	}
}

func TestReopenPolicyCreatorWindow(t *testing.T) {
	p := NewReopenPolicy(NewResolver(), DefaultReopenWindow)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	creator := domain.Actor{UserID: "customer-1", Role: domain.RoleUser}
	day := 24 * time.Hour

	assert.True(t, p.CanReopen(creator, closedTicket(now, 20*day), now).Allowed)
	assert.True(t, p.CanReopen(creator, closedTicket(now, 30*day), now).Allowed, "boundary is inclusive")

	late := p.CanReopen(creator, closedTicket(now, 35*day), now)
	assert.False(t, late.Allowed)
	assert.Equal(t, DenialForbidden, late.Kind)

	assert.False(t, p.CanReopen(creator, closedTicket(now, 30*day+time.Second), now).Allowed)
}

func TestReopenPolicyResolvedHasNoWindow(t *testing.T) {
	p := NewReopenPolicy(nil, 0)
	now := time.Now()
	ticket := newTicket(domain.TicketStatusResolved)
	resolvedAt := now.Add(-90 * 24 * time.Hour)
	ticket.ResolvedAt = &resolvedAt

	creator := domain.Actor{UserID: "customer-1", Role: domain.RoleUser}
	assert.True(t, p.CanReopen(creator, ticket, now).Allowed)
}

func TestReopenPolicyStaffUnrestricted(t *testing.T) {
	p := NewReopenPolicy(nil, 0)
	now := time.Now()
	ticket := closedTicket(now, 35*24*time.Hour)

	assert.True(t, p.CanReopen(staff(domain.RoleAgent, "acme"), ticket, now).Allowed)
	assert.True(t, p.CanReopen(staff(domain.RoleCompanyAdmin, "acme"), ticket, now).Allowed)
	assert.False(t, p.CanReopen(staff(domain.RoleAgent, "globex"), ticket, now).Allowed)
}

func TestReopenPolicyOtherUserDenied(t *testing.T) {
	p := NewReopenPolicy(nil, 0)
	now := time.Now()
	stranger := domain.Actor{UserID: "customer-9", Role: domain.RoleUser}

	d := p.CanReopen(stranger, closedTicket(now, time.Hour), now)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenialForbidden, d.Kind)
}

func TestReopenPolicyMissingClosedAt(t *testing.T) {
	p := NewReopenPolicy(nil, 0)
	creator := domain.Actor{UserID: "customer-1", Role: domain.RoleUser}
	assert.False(t, p.CanReopen(creator, newTicket(domain.TicketStatusClosed), time.Now()).Allowed)
}
