package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-support/internal/analytics"
	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/internal/repository"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

func newQueryFixture() (*QueryService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	svc := NewQueryService(QueryDependencies{
		TicketRepo:  store,
		MessageRepo: store,
	})
	return svc, store
}

func storeTicket(t *testing.T, store *repository.MemoryStore, mutate func(*domain.Ticket)) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Product:     "helpdesk",
		CustomerID:  "cust-1",
		Subject:     "printer on fire",
		Description: "smoke everywhere",
		Status:      domain.TicketStatusNew,
		Priority:    domain.TicketPriorityMedium,
	}
	if mutate != nil {
		mutate(ticket)
	}
	require.NoError(t, store.Create(context.Background(), ticket))
	return ticket
}

func TestGetTicket(t *testing.T) {
	svc, store := newQueryFixture()
	ticket := storeTicket(t, store, nil)

	got, err := svc.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)

	_, err = svc.GetTicket(context.Background(), uuid.NewString())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListTicketsExcludesDeletedAndOtherProducts(t *testing.T) {
	svc, store := newQueryFixture()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	kept := storeTicket(t, store, func(ticket *domain.Ticket) {
		ticket.CreatedAt = base
	})
	storeTicket(t, store, func(ticket *domain.Ticket) {
		ticket.CreatedAt = base.Add(time.Hour)
		ticket.Product = "billing"
	})
	deleted := storeTicket(t, store, func(ticket *domain.Ticket) {
		ticket.CreatedAt = base.Add(2 * time.Hour)
	})
	now := time.Now().UTC()
	deleted.DeletedAt = &now
	require.NoError(t, store.Save(ctx, deleted, 1))

	listed, err := svc.ListTickets(ctx, "helpdesk", repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, kept.ID, listed[0].ID)
}

func TestListMessagesRequiresTicket(t *testing.T) {
	svc, store := newQueryFixture()
	ctx := context.Background()

	_, err := svc.ListMessages(ctx, uuid.NewString())
	assert.True(t, apperrors.IsNotFound(err))

	ticket := storeTicket(t, store, nil)
	for i, content := range []string{"first", "second"} {
		msg := &domain.TicketMessage{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			AuthorID:  "agent-1",
			Content:   content,
			CreatedAt: time.Date(2026, 3, 2, 9, i, 0, 0, time.UTC),
		}
		_, err := store.AppendAtomic(ctx, msg, false)
		require.NoError(t, err)
	}

	msgs, err := svc.ListMessages(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// Oldest first.
	assert.Equal(t, "first", msgs[0].Content)
}

func TestDashboardDelegation(t *testing.T) {
	svc, store := newQueryFixture()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	storeTicket(t, store, func(ticket *domain.Ticket) {
		ticket.CreatedAt = start.Add(time.Hour)
		ticket.SLABreach = true
	})
	storeTicket(t, store, func(ticket *domain.Ticket) {
		ticket.CreatedAt = start.Add(2 * time.Hour)
	})
	storeTicket(t, store, func(ticket *domain.Ticket) {
		ticket.CreatedAt = end.Add(time.Hour) // outside the window
	})

	summary, err := svc.Dashboard(ctx, "helpdesk", start, end, analytics.Options{})
	require.NoError(t, err)
	assert.Equal(t, "helpdesk", summary.Product)
	assert.Equal(t, 2, summary.Overview.TotalTickets)
	assert.Equal(t, 1, summary.Sla.TicketsBreachingSla)
	assert.InDelta(t, 0.5, summary.Sla.BreachRate, 1e-9)
}

func TestDashboardInvalidWindow(t *testing.T) {
	svc, _ := newQueryFixture()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.Dashboard(context.Background(), "helpdesk", start, start, analytics.Options{})
	assert.True(t, apperrors.IsValidation(err))
}
