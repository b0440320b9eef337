package domain

import "time"

// TicketMessage captures one entry in a ticket thread. Messages are
// immutable once created and ordered by creation time within a ticket.
// Internal notes are never visible to the customer and never count
// toward first response.
type TicketMessage struct {
	ID         string
	TicketID   string
	AuthorID   string
	IsInternal bool
	Content    string
	CreatedAt  time.Time
}
