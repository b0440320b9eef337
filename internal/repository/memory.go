package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

// MemoryStore is an in-process implementation of TicketRepository and
// MessageRepository. It backs local development when no Postgres DSN is
// configured and the unit tests. All mutations run under one lock, which
// gives the same atomicity the SQL implementation gets from transactions.
type MemoryStore struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	messages map[string][]domain.TicketMessage
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:  make(map[string]*domain.Ticket),
		messages: make(map[string][]domain.TicketMessage),
	}
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	copied := *t
	if t.Metadata != nil {
		copied.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

func (s *MemoryStore) Create(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = ticket.CreatedAt
	}
	if ticket.Revision == 0 {
		ticket.Revision = 1
	}
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok || ticket.DeletedAt != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return cloneTicket(ticket), nil
}

func (s *MemoryStore) Save(_ context.Context, ticket *domain.Ticket, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tickets[ticket.ID]
	if !ok || stored.DeletedAt != nil {
		return apperrors.NewNotFound("ticket", map[string]any{"id": ticket.ID})
	}
	if stored.Revision != expectedRevision {
		return apperrors.NewConflict("ticket revision mismatch", map[string]any{
			"id":       ticket.ID,
			"expected": expectedRevision,
			"actual":   stored.Revision,
		})
	}
	ticket.Revision = stored.Revision + 1
	ticket.UpdatedAt = time.Now().UTC()
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (s *MemoryStore) ListWithFilter(_ context.Context, product string, filter TicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Ticket
	for _, t := range s.tickets {
		if t.Product != product || t.DeletedAt != nil {
			continue
		}
		if !matchesFilter(t, filter) {
			continue
		}
		matched = append(matched, *cloneTicket(t))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func matchesFilter(t *domain.Ticket, filter TicketFilter) bool {
	if filter.CustomerID != nil && t.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.AssigneeID != nil {
		if t.AssignedTo == nil || *t.AssignedTo != *filter.AssigneeID {
			return false
		}
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
		return false
	}
	if filter.Category != nil {
		if t.Category == nil || *t.Category != *filter.Category {
			return false
		}
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		needle := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if !strings.Contains(strings.ToLower(t.Subject), needle) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, candidate := range list {
		if candidate == p {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ListWindow(_ context.Context, product string, start, end time.Time) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Ticket
	for _, t := range s.tickets {
		if t.Product != product || t.DeletedAt != nil {
			continue
		}
		if t.CreatedAt.Before(start) || !t.CreatedAt.Before(end) {
			continue
		}
		matched = append(matched, *cloneTicket(t))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (s *MemoryStore) ListBreachCandidates(_ context.Context, limit int) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 500
	}
	var matched []domain.Ticket
	for _, t := range s.tickets {
		if t.DeletedAt != nil || t.SLABreach {
			continue
		}
		if t.FirstResponseAt != nil && t.ResolvedAt != nil {
			continue
		}
		matched = append(matched, *cloneTicket(t))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) AppendAtomic(_ context.Context, msg *domain.TicketMessage, setFirstResponse bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[msg.TicketID]
	if !ok || ticket.DeletedAt != nil {
		return false, apperrors.NewNotFound("ticket", map[string]any{"id": msg.TicketID})
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], *msg)

	won := false
	if setFirstResponse && ticket.FirstResponseAt == nil {
		ts := msg.CreatedAt
		ticket.FirstResponseAt = &ts
		ticket.Revision++
		ticket.UpdatedAt = ts
		won = true
	}
	return won, nil
}

func (s *MemoryStore) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append([]domain.TicketMessage{}, s.messages[ticketID]...)
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}
