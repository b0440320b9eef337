package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/internal/events"
	"github.com/spec-kit/crm-support/internal/repository"
	"github.com/spec-kit/crm-support/internal/sla"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

// LifecycleService enforces ticket status transitions and derives milestone
// timestamps and SLA breach flags on every write path. All mutable state
// lives in the store adapter; the service is stateless between calls.
type LifecycleService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	policy     sla.Policy
	dispatcher events.Dispatcher
	validate   *validator.Validate
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Policy      sla.Policy
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CustomerID  string                `validate:"required"`
	Subject     string                `validate:"required"`
	Description string                `validate:"required"`
	Priority    domain.TicketPriority `validate:"required"`
	Category    *string
	Metadata    map[string]any
}

// TicketUpdateInput describes a partial ticket update. Nil fields keep the
// stored value.
type TicketUpdateInput struct {
	Subject     *string
	Description *string
	Priority    *domain.TicketPriority
	Category    *string
	AssignedTo  *string
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		validate:   validator.New(),
	}
}

// CreateTicket creates a ticket in status NEW with all milestones unset.
func (s *LifecycleService) CreateTicket(ctx context.Context, product string, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(product) == "" {
		return nil, apperrors.NewValidationError("product required", nil)
	}
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate.Struct(input); err != nil {
		return nil, apperrors.NewValidationError("invalid ticket input", map[string]any{"cause": err.Error()})
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Product:     product,
		CustomerID:  input.CustomerID,
		Subject:     input.Subject,
		Description: input.Description,
		Status:      domain.TicketStatusNew,
		Priority:    input.Priority,
		Category:    input.Category,
		Metadata:    input.Metadata,
	}
	if ticket.Metadata == nil {
		ticket.Metadata = map[string]any{}
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Product:  ticket.Product,
		Payload: events.TicketCreatedPayload{
			CustomerID: ticket.CustomerID,
			Priority:   ticket.Priority,
			Subject:    ticket.Subject,
		},
	})
	return ticket, nil
}

// AppendMessage appends an immutable message to a ticket thread.
//
// The first non-internal message authored by someone other than the ticket's
// customer sets first_response_at, atomically and at most once; the store
// adapter serializes concurrent candidates so exactly one wins. Appending a
// message never changes ticket status.
func (s *LifecycleService) AppendMessage(ctx context.Context, ticketID, authorID string, isInternal bool, content string) (*domain.TicketMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}
	if authorID == "" {
		return nil, apperrors.NewValidationError("author required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	qualifies := !isInternal && authorID != ticket.CustomerID && ticket.FirstResponseAt == nil

	msg := &domain.TicketMessage{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		AuthorID:   authorID,
		IsInternal: isInternal,
		Content:    content,
	}
	firstResponseSet, err := s.messages.AppendAtomic(ctx, msg, qualifies)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Product:  ticket.Product,
		Payload: events.TicketMessageAddedPayload{
			MessageID:        msg.ID,
			AuthorID:         msg.AuthorID,
			IsInternal:       msg.IsInternal,
			FirstResponseSet: firstResponseSet,
		},
	})
	return msg, nil
}

// UpdateStatus transitions a ticket to a new status under optimistic
// concurrency. Any transition between the five statuses is permitted except
// a same-status no-op. The first transition into RESOLVED or CLOSED captures
// the corresponding milestone; later transitions never overwrite it. Every
// successful update re-evaluates SLA breach.
func (s *LifecycleService) UpdateStatus(ctx context.Context, ticketID string, newStatus domain.TicketStatus, expectedRevision int64) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == newStatus {
		return nil, apperrors.NewValidationError("ticket already in requested status", map[string]any{"status": newStatus})
	}

	now := time.Now().UTC()
	oldStatus := ticket.Status
	ticket.Status = newStatus
	if newStatus == domain.TicketStatusResolved && ticket.ResolvedAt == nil {
		ts := now
		ticket.ResolvedAt = &ts
	}
	if newStatus == domain.TicketStatusClosed && ticket.ClosedAt == nil {
		ts := now
		ticket.ClosedAt = &ts
	}
	wasBreached := ticket.SLABreach
	ticket.SLABreach = sla.Evaluate(ticket, s.policy, now)

	if err := s.tickets.Save(ctx, ticket, expectedRevision); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Product:  ticket.Product,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	s.publishBreachIfNew(ctx, ticket, wasBreached)
	return ticket, nil
}

// UpdateTicket applies a partial update to mutable ticket fields; absent
// fields keep their stored values. Assigning an agent happens here.
func (s *LifecycleService) UpdateTicket(ctx context.Context, ticketID string, input TicketUpdateInput, expectedRevision int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if subject == "" {
			return nil, apperrors.NewValidationError("subject cannot be empty", nil)
		}
		ticket.Subject = subject
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewValidationError("description cannot be empty", nil)
		}
		ticket.Description = description
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.Category != nil {
		ticket.Category = input.Category
	}
	assigneeChanged := false
	if input.AssignedTo != nil {
		assigneeChanged = ticket.AssignedTo == nil || *ticket.AssignedTo != *input.AssignedTo
		ticket.AssignedTo = input.AssignedTo
	}

	now := time.Now().UTC()
	wasBreached := ticket.SLABreach
	ticket.SLABreach = sla.Evaluate(ticket, s.policy, now)

	if err := s.tickets.Save(ctx, ticket, expectedRevision); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Product:  ticket.Product,
		Payload: events.TicketUpdatedPayload{
			AssigneeChanged: assigneeChanged,
			AssignedTo:      ticket.AssignedTo,
		},
	})
	s.publishBreachIfNew(ctx, ticket, wasBreached)
	return ticket, nil
}

// RecordCsat records the customer satisfaction score, an idempotent
// overwrite in the 1-5 range.
func (s *LifecycleService) RecordCsat(ctx context.Context, ticketID string, score int) (*domain.Ticket, error) {
	if score < 1 || score > 5 {
		return nil, apperrors.NewValidationError("csat score must be between 1 and 5", map[string]any{"score": score})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	ticket.CsatScore = &score
	if err := s.tickets.Save(ctx, ticket, ticket.Revision); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCsatRecorded,
		TicketID: ticket.ID,
		Product:  ticket.Product,
		Payload:  events.TicketCsatRecordedPayload{Score: score},
	})
	return ticket, nil
}

// SoftDelete stamps the deletion timestamp. The ticket disappears from all
// default reads and aggregations; it is never hard-deleted.
func (s *LifecycleService) SoftDelete(ctx context.Context, ticketID string, expectedRevision int64) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ticket.DeletedAt = &now
	if err := s.tickets.Save(ctx, ticket, expectedRevision); err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticket.ID,
		Product:  ticket.Product,
	})
	return nil
}

func (s *LifecycleService) publishBreachIfNew(ctx context.Context, ticket *domain.Ticket, wasBreached bool) {
	if wasBreached || !ticket.SLABreach {
		return
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketSlaBreached,
		TicketID: ticket.ID,
		Product:  ticket.Product,
		Payload: events.TicketSlaBreachedPayload{
			Status:   ticket.Status,
			Priority: ticket.Priority,
		},
	})
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
