package domain

import "time"

// TicketResponse is a reply posted on a ticket thread.
type TicketResponse struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorType ResponseAuthorType
	Body       string
	CreatedAt  time.Time
}
