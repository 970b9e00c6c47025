package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/events"
	"github.com/deskline/helpdesk-service/internal/lifecycle"
	"github.com/deskline/helpdesk-service/internal/observability"
	"github.com/deskline/helpdesk-service/internal/repository"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

// AssignmentService handles ticket ownership changes.
type AssignmentService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	tx          repository.Transactor
	machine     *lifecycle.StateMachine
	resolver    *lifecycle.Resolver
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	Transactor  repository.Transactor
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		tx:          deps.Transactor,
		machine:     lifecycle.NewStateMachine(),
		resolver:    lifecycle.NewResolver(),
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         clock,
	}
}

// Assign sets the owning agent of a ticket. The target agent is validated
// before the actor is authorized, so a bad agent id is reported as a
// validation failure even to callers that may not assign.
func (s *AssignmentService) Assign(ctx context.Context, actor domain.Actor, code, newAgentID, note string) (*domain.Ticket, error) {
	newAgentID = strings.TrimSpace(newAgentID)
	if newAgentID == "" {
		return nil, apperrors.NewFieldError("new_agent_id", "required")
	}

	ticket, err := s.tickets.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"code": code})
		}
		return nil, apperrors.MapError(err)
	}

	agent, err := s.users.GetByID(ctx, newAgentID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewFieldError("new_agent_id", "agent does not exist")
		}
		return nil, apperrors.MapError(err)
	}
	if err := eligibleAssignee(agent, ticket); err != nil {
		return nil, err
	}

	if _, err := s.machine.Next(ticket.Status, lifecycle.ActionAssign); err != nil {
		return nil, err
	}
	if err := s.resolver.Can(actor, lifecycle.ActionAssign, ticket).Err(); err != nil {
		s.metrics.RecordTransition(string(lifecycle.ActionAssign), string(apperrors.CategoryAuthorization))
		return nil, err
	}

	previous := ticket.OwnerAgentID
	ownerID := agent.ID
	note = strings.TrimSpace(note)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Tickets.UpdateOwner(ctx, ticket.ID, ownerID); err != nil {
			return err
		}
		return repos.History.Create(ctx, ownerChangeEntry(actor, ticket.ID, previous, &ownerID, note))
	})
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"code": code})
		}
		return nil, apperrors.MapError(err)
	}
	ticket.OwnerAgentID = &ownerID
	ticket.UpdatedAt = s.now()
	s.metrics.RecordTransition(string(lifecycle.ActionAssign), "ok")
	s.logger.Info("ticket assigned",
		zap.String("ticket", ticket.Code),
		zap.String("agent", agent.ID),
		zap.String("actor", actor.UserID))

	publish(ctx, s.dispatcher, events.Event{
		Type:       events.EventTicketAssigned,
		TicketID:   ticket.ID,
		TicketCode: ticket.Code,
		CompanyID:  ticket.CompanyID,
		Actor:      events.ActorFrom(actor),
		Payload: events.TicketAssignedPayload{
			PreviousAgentID: previous,
			NewAgentID:      agent.ID,
			Note:            note,
		},
	}, s.now())
	return ticket, nil
}

func eligibleAssignee(agent *domain.User, ticket *domain.Ticket) error {
	if agent.Role != domain.RoleAgent {
		return apperrors.NewFieldError("new_agent_id", "user is not an agent")
	}
	if agent.CompanyID == nil || *agent.CompanyID != ticket.CompanyID {
		return apperrors.NewFieldError("new_agent_id", "agent belongs to a different company")
	}
	if !agent.Active {
		return apperrors.NewFieldError("new_agent_id", "agent is inactive")
	}
	return nil
}

func ownerChangeEntry(actor domain.Actor, ticketID string, oldOwner, newOwner *string, note string) *domain.TicketHistory {
	newValue := map[string]any{"owner_agent_id": newOwner}
	if note != "" {
		newValue["note"] = note
	}
	return &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByID:   actor.UserID,
		ChangedByRole: actor.Role,
		ChangeType:    domain.ChangeTypeOwner,
		OldValue:      map[string]any{"owner_agent_id": oldOwner},
		NewValue:      newValue,
	}
}
