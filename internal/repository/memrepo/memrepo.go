// Package memrepo provides in-memory repository implementations. The service
// falls back to them when no Postgres DSN is configured, and tests use them
// in place of a database.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/repository"
)

// Store bundles every repository over shared in-memory state.
type Store struct {
	Tickets    *TicketRepository
	Users      *UserRepository
	Companies  *CompanyRepository
	Categories *CategoryRepository
	Responses  *ResponseRepository
	History    *HistoryRepository

	txMu sync.Mutex
}

var _ repository.Transactor = (*Store)(nil)

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		Tickets:    NewTicketRepository(),
		Users:      NewUserRepository(),
		Companies:  NewCompanyRepository(),
		Categories: NewCategoryRepository(),
		Responses:  NewResponseRepository(),
		History:    NewHistoryRepository(),
	}
}

// Repositories exposes the store as a repository.Repositories set.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Tickets:   s.Tickets,
		Responses: s.Responses,
		History:   s.History,
		Users:     s.Users,
		Companies: s.Companies,
	}
}

// WithinTx serializes units of work and restores the previous contents of
// every writable repository when fn fails. Writes made outside WithinTx while
// a failing unit of work is running are rolled back with it.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	restores := []func(){
		s.Tickets.snapshot(),
		s.Responses.snapshot(),
		s.History.snapshot(),
		s.Users.snapshot(),
		s.Companies.snapshot(),
	}
	if err := fn(ctx, s.Repositories()); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func page(total, limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}

// TicketRepository is an in-memory repository.TicketRepository.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
}

var _ repository.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates an empty ticket repository.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{tickets: make(map[string]*domain.Ticket)}
}

func (r *TicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *TicketRepository) snapshot() func() {
	r.mu.RLock()
	saved := make(map[string]*domain.Ticket, len(r.tickets))
	for id, ticket := range r.tickets {
		saved[id] = ticket.Clone()
	}
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.tickets = saved
		r.mu.Unlock()
	}
}

// Put stores ticket as-is, overwriting any existing row. Intended for seeding.
func (r *TicketRepository) Put(ticket *domain.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = ticket.Clone()
}

func (r *TicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket.Clone(), nil
}

func (r *TicketRepository) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ticket := range r.tickets {
		if ticket.Code == code {
			return ticket.Clone(), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *TicketRepository) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	matches := make([]domain.Ticket, 0)
	for _, ticket := range r.tickets {
		if matchesTicket(ticket, filter) {
			matches = append(matches, *ticket.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID > matches[j].ID
	})
	start, end := page(len(matches), filter.Limit, filter.Offset)
	return matches[start:end], nil
}

func matchesTicket(ticket *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CompanyID != nil && ticket.CompanyID != *filter.CompanyID {
		return false
	}
	if filter.CreatorID != nil && ticket.CreatorID != *filter.CreatorID {
		return false
	}
	if filter.OwnerAgentID != nil && (ticket.OwnerAgentID == nil || *ticket.OwnerAgentID != *filter.OwnerAgentID) {
		return false
	}
	if filter.CategoryID != nil && (ticket.CategoryID == nil || *ticket.CategoryID != *filter.CategoryID) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(ticket.Title), term) && !strings.Contains(strings.ToLower(ticket.Code), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}

func (r *TicketRepository) UpdateLifecycle(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStaleTicket
	}
	updated := stored.Clone()
	updated.Status = ticket.Status
	updated.ResolvedAt = ticket.Clone().ResolvedAt
	updated.ClosedAt = ticket.Clone().ClosedAt
	updated.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = updated
	ticket.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *TicketRepository) UpdateOwner(_ context.Context, ticketID string, ownerAgentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	owner := ownerAgentID
	stored.OwnerAgentID = &owner
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *TicketRepository) RecordResponse(_ context.Context, ticketID string, author domain.ResponseAuthorType, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticketID]
	if !ok || stored.Status == domain.TicketStatusClosed {
		return repository.ErrStaleTicket
	}
	stored.LastResponseAuthorType = author
	if author == domain.ResponseAuthorAgent && stored.FirstResponseAt == nil {
		first := at
		stored.FirstResponseAt = &first
	}
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *TicketRepository) ListResolvedBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status == domain.TicketStatusResolved && ticket.ResolvedAt != nil && !ticket.ResolvedAt.After(cutoff) {
			result = append(result, *ticket.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ResolvedAt.Before(*result[j].ResolvedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
