package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/events"
	"github.com/deskline/helpdesk-service/internal/lifecycle"
	"github.com/deskline/helpdesk-service/internal/observability"
	"github.com/deskline/helpdesk-service/internal/repository"
	apperrors "github.com/deskline/helpdesk-service/pkg/util"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	responses  repository.TicketResponseRepository
	history    repository.TicketHistoryRepository
	companies  repository.CompanyRepository
	categories repository.CategoryRepository
	tx         repository.Transactor
	machine    *lifecycle.StateMachine
	resolver   *lifecycle.Resolver
	reopen     *lifecycle.ReopenPolicy
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	ResponseRepo repository.TicketResponseRepository
	HistoryRepo  repository.TicketHistoryRepository
	CompanyRepo  repository.CompanyRepository
	CategoryRepo repository.CategoryRepository
	Transactor   repository.Transactor
	ReopenWindow time.Duration
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Clock        func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CompanyID   string
	CategoryID  *string
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing filters. Scope (own tickets or company
// tickets) is derived from the actor.
type TicketListFilter struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	OwnerAgentID *string
	CategoryID   *string
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	resolver := lifecycle.NewResolver()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		responses:  deps.ResponseRepo,
		history:    deps.HistoryRepo,
		companies:  deps.CompanyRepo,
		categories: deps.CategoryRepo,
		tx:         deps.Transactor,
		machine:    lifecycle.NewStateMachine(),
		resolver:   resolver,
		reopen:     lifecycle.NewReopenPolicy(resolver, deps.ReopenWindow),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// CreateTicket opens a ticket for a customer against a company.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if actor.Role != domain.RoleUser {
		return nil, apperrors.NewForbidden("only customers can open tickets")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	fields := map[string]any{}
	if input.CompanyID == "" {
		fields["company_id"] = "required"
	}
	if title == "" {
		fields["title"] = "required"
	}
	if description == "" {
		fields["description"] = "required"
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		fields["priority"] = "must be one of low, medium, high"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", fields)
	}

	company, err := s.companies.GetByID(ctx, input.CompanyID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewFieldError("company_id", "company does not exist")
		}
		return nil, apperrors.MapError(err)
	}
	if !company.Active {
		return nil, apperrors.NewFieldError("company_id", "company is inactive")
	}
	if input.CategoryID != nil {
		category, err := s.categories.GetByID(ctx, *input.CategoryID)
		if err != nil {
			if isNoRows(err) {
				return nil, apperrors.NewFieldError("category_id", "category does not exist")
			}
			return nil, apperrors.MapError(err)
		}
		if category.CompanyID != company.ID || !category.Active {
			return nil, apperrors.NewFieldError("category_id", "category is not available for this company")
		}
	}

	ticket := &domain.Ticket{
		Code:                   generateTicketCode(),
		CompanyID:              company.ID,
		CreatorID:              actor.UserID,
		CategoryID:             input.CategoryID,
		Title:                  title,
		Description:            description,
		Status:                 domain.TicketStatusOpen,
		Priority:               priority,
		LastResponseAuthorType: domain.ResponseAuthorNone,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, ticket, events.EventTicketCreated, events.ActorFrom(actor), events.TicketCreatedPayload{
		CreatorID:  ticket.CreatorID,
		CategoryID: ticket.CategoryID,
		Priority:   ticket.Priority,
		Title:      ticket.Title,
	})
	return ticket, nil
}

// GetTicket returns a ticket and its thread when actor may view it.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, code string) (*domain.Ticket, []domain.TicketResponse, error) {
	ticket, err := s.loadTicket(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if err := s.resolver.Can(actor, lifecycle.ActionView, ticket).Err(); err != nil {
		return nil, nil, err
	}
	responses, err := s.responses.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, responses, nil
}

// ListTickets returns the tickets visible to actor.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewFieldError("status", "unknown status "+string(status))
		}
	}
	for _, priority := range filter.Priorities {
		if !priority.Valid() {
			return nil, apperrors.NewFieldError("priority", "unknown priority "+string(priority))
		}
	}

	repoFilter := repository.TicketFilter{
		OwnerAgentID: filter.OwnerAgentID,
		CategoryID:   filter.CategoryID,
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		SearchTerm:   filter.SearchTerm,
		CreatedFrom:  filter.CreatedFrom,
		CreatedTo:    filter.CreatedTo,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	switch {
	case actor.Role == domain.RoleUser:
		userID := actor.UserID
		repoFilter.CreatorID = &userID
	case actor.Role.IsCompanyStaff() && actor.CompanyID != nil:
		companyID := *actor.CompanyID
		repoFilter.CompanyID = &companyID
	default:
		return nil, apperrors.NewForbidden("ticket listing is not available for this role")
	}

	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// AddResponse appends a reply and records who answered last.
func (s *TicketService) AddResponse(ctx context.Context, actor domain.Actor, code, body string) (*domain.TicketResponse, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewFieldError("body", "required")
	}
	ticket, err := s.loadTicket(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := s.machine.Next(ticket.Status, lifecycle.ActionRespond); err != nil {
		return nil, err
	}
	if err := s.resolver.Can(actor, lifecycle.ActionRespond, ticket).Err(); err != nil {
		return nil, err
	}

	authorType := domain.ResponseAuthorUser
	if actor.Role.IsCompanyStaff() {
		authorType = domain.ResponseAuthorAgent
	}
	response := &domain.TicketResponse{
		TicketID:   ticket.ID,
		AuthorID:   actor.UserID,
		AuthorType: authorType,
		Body:       body,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Tickets.RecordResponse(ctx, ticket.ID, authorType, s.now()); err != nil {
			return err
		}
		if err := repos.Responses.Create(ctx, response); err != nil {
			return err
		}
		return repos.History.Create(ctx, historyEntry(actor.UserID, actor.Role, ticket.ID, domain.ChangeTypeResponse,
			map[string]any{"last_response_author_type": ticket.LastResponseAuthorType},
			map[string]any{"last_response_author_type": authorType, "response_id": response.ID},
		))
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			return nil, apperrors.NewStateConflict("ticket was closed by another request", map[string]any{"code": ticket.Code})
		}
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, ticket, events.EventTicketResponded, events.ActorFrom(actor), events.TicketRespondedPayload{
		ResponseID:  response.ID,
		AuthorType:  authorType,
		BodyPreview: stringPreview(body, 120),
	})
	return response, nil
}

// Resolve marks an open or pending ticket as resolved.
func (s *TicketService) Resolve(ctx context.Context, actor domain.Actor, code, note string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, code, lifecycle.ActionResolve, note)
}

// Reopen moves a resolved or closed ticket back to pending.
func (s *TicketService) Reopen(ctx context.Context, actor domain.Actor, code, note string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, code, lifecycle.ActionReopen, note)
}

// Close closes a ticket that is not already closed.
func (s *TicketService) Close(ctx context.Context, actor domain.Actor, code, note string) (*domain.Ticket, error) {
	return s.transition(ctx, actor, code, lifecycle.ActionClose, note)
}

// transition checks state before authorization, so an invalid action on a
// ticket reports a state conflict regardless of who attempted it.
func (s *TicketService) transition(ctx context.Context, actor domain.Actor, code string, action lifecycle.Action, note string) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := s.machine.Next(ticket.Status, action); err != nil {
		s.recordOutcome(action, err)
		return nil, err
	}

	now := s.now()
	var decision lifecycle.Decision
	if action == lifecycle.ActionReopen {
		decision = s.reopen.CanReopen(actor, ticket, now)
	} else {
		decision = s.resolver.Can(actor, action, ticket)
	}
	if err := decision.Err(); err != nil {
		s.recordOutcome(action, err)
		return nil, err
	}

	note = strings.TrimSpace(note)
	tr, err := s.applyTransition(ctx, ticket, action, now, actor.UserID, actor.Role, note)
	if err != nil {
		s.recordOutcome(action, err)
		return nil, err
	}
	s.afterTransition(ctx, ticket, tr, events.ActorFrom(actor), actor.UserID, note)
	return ticket, nil
}

// applyTransition persists the status change and its history entry as one
// unit of work. On error nothing is stored and ticket must be discarded.
func (s *TicketService) applyTransition(ctx context.Context, ticket *domain.Ticket, action lifecycle.Action, now time.Time, actorID string, role domain.Role, note string) (lifecycle.Transition, error) {
	expected := ticket.Status
	tr, err := s.machine.Apply(ticket, action, now)
	if err != nil {
		return lifecycle.Transition{}, err
	}
	newValue := map[string]any{"status": tr.To}
	if note != "" {
		newValue["note"] = note
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Tickets.UpdateLifecycle(ctx, ticket, expected); err != nil {
			return err
		}
		return repos.History.Create(ctx, historyEntry(actorID, role, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": tr.From}, newValue))
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			return lifecycle.Transition{}, apperrors.NewStateConflict("ticket was modified by another request", map[string]any{"code": ticket.Code})
		}
		return lifecycle.Transition{}, apperrors.MapError(err)
	}
	return tr, nil
}

func (s *TicketService) afterTransition(ctx context.Context, ticket *domain.Ticket, tr lifecycle.Transition, eventActor events.Actor, actorID string, note string) {
	s.recordOutcome(tr.Action, nil)
	s.logger.Info("ticket transitioned",
		zap.String("ticket", ticket.Code),
		zap.String("action", string(tr.Action)),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("actor", actorID))

	s.publishEvent(ctx, ticket, transitionEvent(tr.Action), eventActor, events.TicketTransitionPayload{
		OldStatus: tr.From,
		NewStatus: tr.To,
		Note:      note,
	})
}

// ListHistory returns the audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, code string, limit, offset int) ([]domain.TicketHistory, error) {
	ticket, err := s.loadTicket(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Can(actor, lifecycle.ActionView, ticket).Err(); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// AutoCloseResolved closes tickets that have stayed resolved since before
// cutoff. It returns the number of tickets closed.
func (s *TicketService) AutoCloseResolved(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	tickets, err := s.tickets.ListResolvedBefore(ctx, cutoff, batchSize)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	closed := 0
	for i := range tickets {
		ticket := &tickets[i]
		tr, err := s.applyTransition(ctx, ticket, lifecycle.ActionClose, s.now(), domain.SystemActorID, domain.RoleSystem, autoCloseNote)
		if err != nil {
			if apperrors.IsCategory(err, apperrors.CategoryStateConflict) {
				continue
			}
			return closed, err
		}
		s.afterTransition(ctx, ticket, tr, events.SystemActor(), domain.SystemActorID, autoCloseNote)
		closed++
	}
	return closed, nil
}

func (s *TicketService) loadTicket(ctx context.Context, code string) (*domain.Ticket, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"code": code})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) recordOutcome(action lifecycle.Action, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.ToDomainError(err).Category)
	}
	s.metrics.RecordTransition(string(action), outcome)
}

func historyEntry(actorID string, role domain.Role, ticketID string, changeType domain.TicketChangeType, oldValue, newValue map[string]any) *domain.TicketHistory {
	return &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByID:   actorID,
		ChangedByRole: role,
		ChangeType:    changeType,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
}

func (s *TicketService) publishEvent(ctx context.Context, ticket *domain.Ticket, eventType events.EventType, actor events.Actor, payload any) {
	publish(ctx, s.dispatcher, events.Event{
		Type:       eventType,
		TicketID:   ticket.ID,
		TicketCode: ticket.Code,
		CompanyID:  ticket.CompanyID,
		Actor:      actor,
		Payload:    payload,
	}, s.now())
}

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event, now time.Time) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	_ = dispatcher.Publish(ctx, event)
}

func transitionEvent(action lifecycle.Action) events.EventType {
	switch action {
	case lifecycle.ActionResolve:
		return events.EventTicketResolved
	case lifecycle.ActionReopen:
		return events.EventTicketReopened
	default:
		return events.EventTicketClosed
	}
}

const autoCloseNote = "auto-closed after resolution"

func generateTicketCode() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// stringPreview shortens body to at most max bytes without splitting a rune.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	suffix := "..."
	if max <= len(suffix) {
		suffix = ""
	}
	limit := max - len(suffix)
	cut := 0
	for cut < len(body) {
		_, size := utf8.DecodeRuneInString(body[cut:])
		if cut+size > limit {
			break
		}
		cut += size
	}
	return body[:cut] + suffix
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
