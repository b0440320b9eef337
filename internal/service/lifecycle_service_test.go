package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/internal/repository"
	"github.com/spec-kit/crm-support/internal/sla"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

func newLifecycleFixture() (*LifecycleService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	svc := NewLifecycleService(LifecycleDependencies{
		TicketRepo:  store,
		MessageRepo: store,
		Policy: sla.Policy{
			FirstResponseMax: 4 * time.Hour,
			ResolutionMax:    72 * time.Hour,
		},
	})
	return svc, store
}

func createTicket(t *testing.T, svc *LifecycleService) *domain.Ticket {
	t.Helper()
	ticket, err := svc.CreateTicket(context.Background(), "helpdesk", TicketCreateInput{
		CustomerID:  "cust-1",
		Subject:     "login broken",
		Description: "cannot sign in",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicketDefaults(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)

	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Nil(t, ticket.FirstResponseAt)
	assert.Nil(t, ticket.ResolvedAt)
	assert.Nil(t, ticket.ClosedAt)
	assert.False(t, ticket.SLABreach)
	assert.Equal(t, int64(1), ticket.Revision)
	assert.NotNil(t, ticket.Metadata)
}

func TestCreateTicketValidation(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ctx := context.Background()

	_, err := svc.CreateTicket(ctx, "", TicketCreateInput{
		CustomerID: "cust-1", Subject: "x", Description: "y", Priority: domain.TicketPriorityLow,
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.CreateTicket(ctx, "helpdesk", TicketCreateInput{
		CustomerID: "cust-1", Subject: "   ", Description: "y", Priority: domain.TicketPriorityLow,
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.CreateTicket(ctx, "helpdesk", TicketCreateInput{
		CustomerID: "cust-1", Subject: "x", Description: "y", Priority: "CRITICAL",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestAppendMessageSetsFirstResponse(t *testing.T) {
	svc, store := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, ticket.ID, "agent-1", false, "looking into it")
	require.NoError(t, err)

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.FirstResponseAt)
	// Appending never changes status.
	assert.Equal(t, domain.TicketStatusNew, got.Status)
}

func TestAppendMessageInternalDoesNotRespond(t *testing.T) {
	svc, store := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, ticket.ID, "agent-1", true, "internal triage note")
	require.NoError(t, err)

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FirstResponseAt)
}

func TestAppendMessageCustomerAuthorDoesNotRespond(t *testing.T) {
	svc, store := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, ticket.ID, "cust-1", false, "any update?")
	require.NoError(t, err)

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FirstResponseAt)
}

func TestAppendMessageFirstResponseSetOnce(t *testing.T) {
	svc, store := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, ticket.ID, "agent-1", false, "first")
	require.NoError(t, err)
	first, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, first.FirstResponseAt)

	_, err = svc.AppendMessage(ctx, ticket.ID, "agent-2", false, "second")
	require.NoError(t, err)
	second, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.FirstResponseAt, *second.FirstResponseAt)
}

func TestAppendMessageConcurrentSingleWinner(t *testing.T) {
	svc, store := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		author := "agent-" + uuid.NewString()
		go func() {
			defer wg.Done()
			_, err := svc.AppendMessage(ctx, ticket.ID, author, false, "racing reply")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FirstResponseAt)

	msgs, err := store.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 8)
}

func TestAppendMessageValidation(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	_, err := svc.AppendMessage(ctx, ticket.ID, "agent-1", false, "   ")
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.AppendMessage(ctx, ticket.ID, "", false, "hello")
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.AppendMessage(ctx, uuid.NewString(), "agent-1", false, "hello")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Equal(t, int64(2), updated.Revision)
	assert.Nil(t, updated.ResolvedAt)
}

func TestUpdateStatusSameStatusRejected(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)

	_, err := svc.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatusNew, 1)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateStatusUnknownStatusRejected(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)

	_, err := svc.UpdateStatus(context.Background(), ticket.ID, "ARCHIVED", 1)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateStatusMilestonesSetOnce(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	resolved, err := svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, 1)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	firstResolved := *resolved.ResolvedAt

	reopened, err := svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, resolved.Revision)
	require.NoError(t, err)
	require.NotNil(t, reopened.ResolvedAt)

	again, err := svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, reopened.Revision)
	require.NoError(t, err)
	assert.Equal(t, firstResolved, *again.ResolvedAt)

	closed, err := svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, again.Revision)
	require.NoError(t, err)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, firstResolved, *closed.ResolvedAt)
}

func TestUpdateStatusStaleRevisionConflicts(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusInProgress, 1)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusClosed, 1)
	assert.True(t, apperrors.IsConflict(err))
}

func TestUpdateStatusFlagsLateResolution(t *testing.T) {
	svc, store := newLifecycleFixture()
	ctx := context.Background()

	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Product:     "helpdesk",
		CustomerID:  "cust-1",
		Subject:     "stale ticket",
		Description: "left unattended",
		Status:      domain.TicketStatusNew,
		Priority:    domain.TicketPriorityLow,
		CreatedAt:   time.Now().UTC().Add(-100 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, ticket))

	updated, err := svc.UpdateStatus(ctx, ticket.ID, domain.TicketStatusResolved, 1)
	require.NoError(t, err)
	assert.True(t, updated.SLABreach)
}

func TestUpdateTicketPartialPatch(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	agent := "agent-1"
	priority := domain.TicketPriorityUrgent
	updated, err := svc.UpdateTicket(ctx, ticket.ID, TicketUpdateInput{
		Priority:   &priority,
		AssignedTo: &agent,
	}, 1)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketPriorityUrgent, updated.Priority)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, agent, *updated.AssignedTo)
	// Untouched fields keep stored values.
	assert.Equal(t, "login broken", updated.Subject)
	assert.Equal(t, "cannot sign in", updated.Description)
}

func TestUpdateTicketValidation(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	empty := "  "
	_, err := svc.UpdateTicket(ctx, ticket.ID, TicketUpdateInput{Subject: &empty}, 1)
	assert.True(t, apperrors.IsValidation(err))

	bad := domain.TicketPriority("SEV0")
	_, err = svc.UpdateTicket(ctx, ticket.ID, TicketUpdateInput{Priority: &bad}, 1)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRecordCsatBounds(t *testing.T) {
	svc, _ := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	_, err := svc.RecordCsat(ctx, ticket.ID, 0)
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.RecordCsat(ctx, ticket.ID, 6)
	assert.True(t, apperrors.IsValidation(err))

	updated, err := svc.RecordCsat(ctx, ticket.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, updated.CsatScore)
	assert.Equal(t, 5, *updated.CsatScore)

	// Overwrite is allowed.
	updated, err = svc.RecordCsat(ctx, ticket.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, *updated.CsatScore)
}

func TestSoftDeleteHidesTicket(t *testing.T) {
	svc, store := newLifecycleFixture()
	ticket := createTicket(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.SoftDelete(ctx, ticket.ID, 1))

	_, err := store.GetByID(ctx, ticket.ID)
	assert.True(t, apperrors.IsNotFound(err))

	err = svc.SoftDelete(ctx, ticket.ID, 2)
	assert.True(t, apperrors.IsNotFound(err))
}
