package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/events"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

func TestAssignSetsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.seedTicket(t, domain.TicketStatusOpen, nil)

	assigned, err := f.assignment.Assign(ctx, f.acmeAdmin.Actor(), ticket.Code, f.agent.ID, "billing expert")
	require.NoError(t, err)
	require.NotNil(t, assigned.OwnerAgentID)
	assert.Equal(t, f.agent.ID, *assigned.OwnerAgentID)
	assert.Equal(t, domain.TicketStatusOpen, assigned.Status)

	stored := f.reload(t, ticket)
	require.NotNil(t, stored.OwnerAgentID)
	assert.Equal(t, f.agent.ID, *stored.OwnerAgentID)
	assert.Equal(t, domain.ResponseAuthorNone, stored.LastResponseAuthorType)

	history, err := f.store.History.ListByTicket(ctx, ticket.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeOwner, history[0].ChangeType)
	assert.Equal(t, "billing expert", history[0].NewValue["note"])

	event := f.recorded.last()
	assert.Equal(t, events.EventTicketAssigned, event.Type)
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	require.True(t, ok)
	assert.Nil(t, payload.PreviousAgentID)
	assert.Equal(t, f.agent.ID, payload.NewAgentID)
}

func TestAssignAllowedInAnyStatus(t *testing.T) {
	f := newFixture(t)
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusPending,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		ticket := f.seedTicket(t, status, nil)
		assigned, err := f.assignment.Assign(context.Background(), f.agent.Actor(), ticket.Code, f.agent.ID, "")
		require.NoError(t, err, status)
		assert.Equal(t, status, assigned.Status)
		assert.Equal(t, status, f.reload(t, ticket).Status)
	}
}

func TestAssignValidationOrder(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t, domain.TicketStatusOpen, nil)

	tests := []struct {
		name     string
		actor    domain.Actor
		code     string
		agentID  string
		category apperrors.Category
	}{
		{name: "missing agent id", actor: f.agent.Actor(), code: ticket.Code, agentID: "", category: apperrors.CategoryValidation},
		{name: "unknown ticket", actor: f.agent.Actor(), code: "TCK-NOPE", agentID: f.agent.ID, category: apperrors.CategoryNotFound},
		{name: "unknown agent", actor: f.agent.Actor(), code: ticket.Code, agentID: "ghost", category: apperrors.CategoryValidation},
		{name: "agent of another company", actor: f.agent.Actor(), code: ticket.Code, agentID: f.globexAgent.ID, category: apperrors.CategoryValidation},
		{name: "target is not an agent", actor: f.agent.Actor(), code: ticket.Code, agentID: f.acmeAdmin.ID, category: apperrors.CategoryValidation},
		{name: "inactive agent", actor: f.agent.Actor(), code: ticket.Code, agentID: f.inactiveAgent.ID, category: apperrors.CategoryValidation},
		{name: "customer with valid agent", actor: f.customer.Actor(), code: ticket.Code, agentID: f.agent.ID, category: apperrors.CategoryAuthorization},
		{name: "customer with invalid agent", actor: f.customer.Actor(), code: ticket.Code, agentID: f.globexAgent.ID, category: apperrors.CategoryValidation},
		{name: "staff of another company", actor: f.globexAgent.Actor(), code: ticket.Code, agentID: f.agent.ID, category: apperrors.CategoryAuthorization},
		{name: "platform admin", actor: f.platformAdmin.Actor(), code: ticket.Code, agentID: f.agent.ID, category: apperrors.CategoryAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.assignment.Assign(context.Background(), tt.actor, tt.code, tt.agentID, "")
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, tt.category), "got %v", err)
		})
	}

	assert.Nil(t, f.reload(t, ticket).OwnerAgentID)
	assert.Empty(t, f.recorded.types())
}

func TestReassignRecordsPreviousOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := f.addUser(t, "second@acme.test", domain.RoleAgent, &f.acme.ID, true)
	ticket := f.seedTicket(t, domain.TicketStatusPending, func(tk *domain.Ticket) {
		owner := f.agent.ID
		tk.OwnerAgentID = &owner
	})

	_, err := f.assignment.Assign(ctx, f.agent.Actor(), ticket.Code, second.ID, "")
	require.NoError(t, err)

	payload := f.recorded.last().Payload.(events.TicketAssignedPayload)
	require.NotNil(t, payload.PreviousAgentID)
	assert.Equal(t, f.agent.ID, *payload.PreviousAgentID)
	assert.Equal(t, second.ID, payload.NewAgentID)
}

func TestAssignRollsBackWhenHistoryFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.seedTicket(t, domain.TicketStatusOpen, nil)
	svc := f.assignmentService(failingHistory(f.store))

	_, err := svc.Assign(ctx, f.acmeAdmin.Actor(), ticket.Code, f.agent.ID, "")
	require.ErrorIs(t, err, errHistoryWrite)
	assert.Nil(t, f.reload(t, ticket).OwnerAgentID)
	assert.Empty(t, f.recorded.types())
}
