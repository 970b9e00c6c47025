package repository

import (
	"context"

	"github.com/deskline/helpdesk-service/internal/domain"
)

// TicketResponseRepository stores ticket thread replies.
type TicketResponseRepository interface {
	Create(ctx context.Context, response *domain.TicketResponse) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketResponse, error)
}

type ticketResponseRepository struct {
	db DBTX
}

// NewTicketResponseRepository creates repository.
func NewTicketResponseRepository(db DBTX) TicketResponseRepository {
	return &ticketResponseRepository{db: db}
}

func (r *ticketResponseRepository) Create(ctx context.Context, response *domain.TicketResponse) error {
	const query = `
        INSERT INTO ticket_responses (ticket_id, author_id, author_type, body)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		response.TicketID,
		response.AuthorID,
		response.AuthorType,
		response.Body,
	).Scan(&response.ID, &response.CreatedAt)
}

func (r *ticketResponseRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketResponse, error) {
	const query = `
        SELECT id, ticket_id, author_id, author_type, body, created_at
        FROM ticket_responses WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketResponse
	for rows.Next() {
		var response domain.TicketResponse
		if err := rows.Scan(
			&response.ID,
			&response.TicketID,
			&response.AuthorID,
			&response.AuthorType,
			&response.Body,
			&response.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, response)
	}
	return result, rows.Err()
}
