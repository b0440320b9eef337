package events

import (
	"time"

	"github.com/spec-kit/crm-support/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventTicketCsatRecorded  EventType = "ticket_csat_recorded"
	EventTicketSlaBreached   EventType = "ticket_sla_breached"
	EventTicketDeleted       EventType = "ticket_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Product   string      `json:"product"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CustomerID string                `json:"customer_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Subject    string                `json:"subject"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	AssigneeChanged bool    `json:"assignee_changed"`
	AssignedTo      *string `json:"assigned_to,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID        string `json:"message_id"`
	AuthorID         string `json:"author_id"`
	IsInternal       bool   `json:"is_internal"`
	FirstResponseSet bool   `json:"first_response_set"`
}

// TicketCsatRecordedPayload payload.
type TicketCsatRecordedPayload struct {
	Score int `json:"score"`
}

// TicketSlaBreachedPayload payload.
type TicketSlaBreachedPayload struct {
	Status   domain.TicketStatus   `json:"status"`
	Priority domain.TicketPriority `json:"priority"`
}
