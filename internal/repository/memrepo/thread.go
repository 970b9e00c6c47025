package memrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskline/helpdesk-service/internal/domain"
	"github.com/deskline/helpdesk-service/internal/repository"
)

// ResponseRepository is an in-memory repository.TicketResponseRepository.
type ResponseRepository struct {
	mu        sync.RWMutex
	responses []domain.TicketResponse
}

var _ repository.TicketResponseRepository = (*ResponseRepository)(nil)

// NewResponseRepository creates an empty response repository.
func NewResponseRepository() *ResponseRepository {
	return &ResponseRepository{}
}

func (r *ResponseRepository) Create(_ context.Context, response *domain.TicketResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	response.ID = uuid.NewString()
	response.CreatedAt = time.Now()
	r.responses = append(r.responses, *response)
	return nil
}

func (r *ResponseRepository) snapshot() func() {
	r.mu.RLock()
	saved := append([]domain.TicketResponse(nil), r.responses...)
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.responses = saved
		r.mu.Unlock()
	}
}

func (r *ResponseRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.TicketResponse, 0)
	for _, response := range r.responses {
		if response.TicketID == ticketID {
			result = append(result, response)
		}
	}
	return result, nil
}

// HistoryRepository is an in-memory repository.TicketHistoryRepository.
type HistoryRepository struct {
	mu      sync.RWMutex
	entries []domain.TicketHistory
}

var _ repository.TicketHistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates an empty history repository.
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Create(_ context.Context, history *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history.ID = uuid.NewString()
	history.CreatedAt = time.Now()
	r.entries = append(r.entries, *history)
	return nil
}

func (r *HistoryRepository) snapshot() func() {
	r.mu.RLock()
	saved := append([]domain.TicketHistory(nil), r.entries...)
	r.mu.RUnlock()
	return func() {
		r.mu.Lock()
		r.entries = saved
		r.mu.Unlock()
	}
}

func (r *HistoryRepository) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]domain.TicketHistory, 0)
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			matches = append(matches, entry)
		}
	}
	start, end := page(len(matches), limit, offset)
	return matches[start:end], nil
}
