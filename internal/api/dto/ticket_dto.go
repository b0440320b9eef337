package dto

import (
	"time"

	"github.com/spec-kit/crm-support/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Product     string                `json:"product"`
	CustomerID  string                `json:"customer_id"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    *string               `json:"category"`
	Metadata    map[string]any        `json:"metadata"`
}

// UpdateTicketRequest payload; absent fields keep their stored values.
type UpdateTicketRequest struct {
	Subject          *string                `json:"subject"`
	Description      *string                `json:"description"`
	Priority         *domain.TicketPriority `json:"priority"`
	Category         *string                `json:"category"`
	AssignedTo       *string                `json:"assigned_to"`
	ExpectedRevision int64                  `json:"expected_revision"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status           domain.TicketStatus `json:"status"`
	ExpectedRevision int64               `json:"expected_revision"`
}

// RecordCsatRequest payload.
type RecordCsatRequest struct {
	Score int `json:"score"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// DeleteTicketRequest payload.
type DeleteTicketRequest struct {
	ExpectedRevision int64 `json:"expected_revision"`
}

// TicketResponse is the full ticket shape.
type TicketResponse struct {
	ID              string                `json:"id"`
	Product         string                `json:"product"`
	CustomerID      string                `json:"customer_id"`
	Subject         string                `json:"subject"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Category        *string               `json:"category"`
	AssignedTo      *string               `json:"assigned_to"`
	FirstResponseAt *time.Time            `json:"first_response_at"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
	SLABreach       bool                  `json:"sla_breach"`
	CsatScore       *int                  `json:"csat_score"`
	Metadata        map[string]any        `json:"metadata"`
	Revision        int64                 `json:"revision"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// MessageResponse represents one thread entry.
type MessageResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	AuthorID   string    `json:"author_id"`
	IsInternal bool      `json:"is_internal"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromTicket maps a domain ticket to its response shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		Product:         t.Product,
		CustomerID:      t.CustomerID,
		Subject:         t.Subject,
		Description:     t.Description,
		Status:          t.Status,
		Priority:        t.Priority,
		Category:        t.Category,
		AssignedTo:      t.AssignedTo,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
		ClosedAt:        t.ClosedAt,
		SLABreach:       t.SLABreach,
		CsatScore:       t.CsatScore,
		Metadata:        t.Metadata,
		Revision:        t.Revision,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// FromMessage maps a domain message to its response shape.
func FromMessage(m *domain.TicketMessage) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		AuthorID:   m.AuthorID,
		IsInternal: m.IsInternal,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}
