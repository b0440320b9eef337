package domain

import "time"

// TicketStatus enumerates lifecycle states for support tickets.
type TicketStatus string

const (
	TicketStatusNew               TicketStatus = "NEW"
	TicketStatusInProgress        TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingOnCustomer TicketStatus = "WAITING_ON_CUSTOMER"
	TicketStatusResolved          TicketStatus = "RESOLVED"
	TicketStatusClosed            TicketStatus = "CLOSED"
)

// TicketStatuses lists every status in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusNew,
	TicketStatusInProgress,
	TicketStatusWaitingOnCustomer,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether the status is a recognized value.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusWaitingOnCustomer,
		TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Open reports whether the status counts as an open ticket.
func (s TicketStatus) Open() bool {
	return s != TicketStatusResolved && s != TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketPriorities lists every priority from most to least urgent.
var TicketPriorities = []TicketPriority{
	TicketPriorityUrgent,
	TicketPriorityHigh,
	TicketPriorityMedium,
	TicketPriorityLow,
}

// Valid reports whether the priority is a recognized value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for customer support requests.
//
// Milestone timestamps (FirstResponseAt, ResolvedAt, ClosedAt) are each set
// at most once and never cleared. Revision is the optimistic concurrency
// token; every persisted write bumps it.
type Ticket struct {
	ID              string
	Product         string
	CustomerID      string
	Subject         string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	Category        *string
	AssignedTo      *string
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	SLABreach       bool
	CsatScore       *int
	Metadata        map[string]any
	Revision        int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}
