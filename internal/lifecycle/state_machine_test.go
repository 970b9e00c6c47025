package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk-service/internal/domain"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

var allStatuses = []domain.TicketStatus{
	domain.TicketStatusOpen,
	domain.TicketStatusPending,
	domain.TicketStatusResolved,
	domain.TicketStatusClosed,
}

func newTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:                     "t-1",
		Code:                   "TCK-00000001",
		CompanyID:              "acme",
		CreatorID:              "customer-1",
		Status:                 status,
		Priority:               domain.TicketPriorityMedium,
		LastResponseAuthorType: domain.ResponseAuthorUser,
	}
}

func TestStateMachineNext(t *testing.T) {
	m := NewStateMachine()
	cases := []struct {
		from   domain.TicketStatus
		action Action
		want   domain.TicketStatus
		ok     bool
	}{
		{domain.TicketStatusOpen, ActionResolve, domain.TicketStatusResolved, true},
		{domain.TicketStatusPending, ActionResolve, domain.TicketStatusResolved, true},
		{domain.TicketStatusResolved, ActionResolve, "", false},
		{domain.TicketStatusClosed, ActionResolve, "", false},
		{domain.TicketStatusOpen, ActionReopen, "", false},
		{domain.TicketStatusPending, ActionReopen, "", false},
		{domain.TicketStatusResolved, ActionReopen, domain.TicketStatusPending, true},
		{domain.TicketStatusClosed, ActionReopen, domain.TicketStatusPending, true},
		{domain.TicketStatusOpen, ActionClose, domain.TicketStatusClosed, true},
		{domain.TicketStatusResolved, ActionClose, domain.TicketStatusClosed, true},
		{domain.TicketStatusClosed, ActionClose, "", false},
		{domain.TicketStatusClosed, ActionRespond, "", false},
		{domain.TicketStatusResolved, ActionRespond, domain.TicketStatusResolved, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.action), func(t *testing.T) {
			got, err := m.Next(tc.from, tc.action)
			if !tc.ok {
				require.Error(t, err)
				assert.True(t, apperrors.IsCategory(err, apperrors.CategoryStateConflict))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAssignNeverChangesStatus(t *testing.T) {
	m := NewStateMachine()
	for _, status := range allStatuses {
		ticket := newTicket(status)
		tr, err := m.Apply(ticket, ActionAssign, time.Now())
		require.NoError(t, err)
		assert.False(t, tr.Changed())
		assert.Equal(t, status, ticket.Status)
		assert.Nil(t, ticket.ResolvedAt)
		assert.Nil(t, ticket.ClosedAt)
	}
}

func TestApplyResolve(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ticket := newTicket(domain.TicketStatusPending)

	tr, err := NewStateMachine().Apply(ticket, ActionResolve, now)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusPending, tr.From)
	assert.Equal(t, domain.TicketStatusResolved, tr.To)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	require.NotNil(t, ticket.ResolvedAt)
	assert.True(t, ticket.ResolvedAt.Equal(now))
	assert.Nil(t, ticket.ClosedAt)
	assert.Equal(t, domain.ResponseAuthorUser, ticket.LastResponseAuthorType)
}

func TestApplyCloseStampsResolvedWhenMissing(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ticket := newTicket(domain.TicketStatusOpen)

	_, err := NewStateMachine().Apply(ticket, ActionClose, now)
	require.NoError(t, err)
	require.NotNil(t, ticket.ClosedAt)
	require.NotNil(t, ticket.ResolvedAt)
	assert.True(t, ticket.ResolvedAt.Equal(now))

	resolvedEarlier := now.Add(-48 * time.Hour)
	resolved := newTicket(domain.TicketStatusResolved)
	resolved.ResolvedAt = &resolvedEarlier
	_, err = NewStateMachine().Apply(resolved, ActionClose, now)
	require.NoError(t, err)
	assert.True(t, resolved.ResolvedAt.Equal(resolvedEarlier))
}

func TestApplyReopenClearsClosedAtKeepsResolvedAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	closedAt := now.Add(-24 * time.Hour)
	resolvedAt := now.Add(-72 * time.Hour)
	ticket := newTicket(domain.TicketStatusClosed)
	ticket.ClosedAt = &closedAt
	ticket.ResolvedAt = &resolvedAt

	_, err := NewStateMachine().Apply(ticket, ActionReopen, now)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
	assert.Nil(t, ticket.ClosedAt)
	require.NotNil(t, ticket.ResolvedAt)
	assert.True(t, ticket.ResolvedAt.Equal(resolvedAt))
	assert.Equal(t, domain.ResponseAuthorUser, ticket.LastResponseAuthorType)
}

func TestApplyConflictLeavesTicketUntouched(t *testing.T) {
	ticket := newTicket(domain.TicketStatusOpen)
	before := *ticket

	_, err := NewStateMachine().Apply(ticket, ActionReopen, time.Now())
	require.Error(t, err)
	assert.Equal(t, before, *ticket)
}
