package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/internal/events"
	"github.com/spec-kit/crm-support/internal/repository"
	"github.com/spec-kit/crm-support/internal/sla"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

// SlaWorker periodically flags SLA breaches that accrue from the passage of
// time alone (overdue first response or resolution on tickets nobody is
// writing to). Breach writes go through the same revision-checked save as
// any other write; a conflict just leaves the ticket for the next sweep.
type SlaWorker struct {
	tickets    repository.TicketRepository
	policy     sla.Policy
	interval   time.Duration
	batchSize  int
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// SlaWorkerDependencies bundles collaborators for the sweep worker.
type SlaWorkerDependencies struct {
	TicketRepo repository.TicketRepository
	Policy     sla.Policy
	Interval   time.Duration
	BatchSize  int
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewSlaWorker constructs the worker.
func NewSlaWorker(deps SlaWorkerDependencies) *SlaWorker {
	interval := deps.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlaWorker{
		tickets:    deps.TicketRepo,
		policy:     deps.Policy,
		interval:   interval,
		batchSize:  deps.BatchSize,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (w *SlaWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("sla sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep evaluates breach candidates once and persists newly breached flags.
func (w *SlaWorker) Sweep(ctx context.Context) error {
	candidates, err := w.tickets.ListBreachCandidates(ctx, w.batchSize)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	flagged := 0
	for i := range candidates {
		ticket := &candidates[i]
		if !sla.Evaluate(ticket, w.policy, now) {
			continue
		}
		ticket.SLABreach = true
		if err := w.tickets.Save(ctx, ticket, ticket.Revision); err != nil {
			if apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
				continue
			}
			return err
		}
		flagged++
		w.publishBreach(ctx, ticket)
	}

	if flagged > 0 {
		w.logger.Info("sla sweep flagged breaches", zap.Int("count", flagged))
	}
	return nil
}

func (w *SlaWorker) publishBreach(ctx context.Context, ticket *domain.Ticket) {
	if w.dispatcher == nil {
		return
	}
	_ = w.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketSlaBreached,
		TicketID:  ticket.ID,
		Product:   ticket.Product,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketSlaBreachedPayload{
			Status:   ticket.Status,
			Priority: ticket.Priority,
		},
	})
}
