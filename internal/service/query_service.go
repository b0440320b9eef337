package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-support/internal/analytics"
	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/internal/repository"
)

// QueryService composes the store adapter reads the callers need. It is
// stateless and holds no business rules of its own; the soft-delete
// predicate is applied uniformly by the adapter.
type QueryService struct {
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// QueryDependencies bundles collaborators for the query service. Cache is
// optional; without it every dashboard request recomputes.
type QueryDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	Cache       *redis.Client
	CacheTTL    time.Duration
	Logger      *zap.Logger
}

// NewQueryService constructs the service.
func NewQueryService(deps QueryDependencies) *QueryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		logger:   logger,
	}
}

// GetTicket fetches a single ticket; soft-deleted tickets read as absent.
func (s *QueryService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// ListTickets returns a filtered, paginated ticket page for a product,
// newest first.
func (s *QueryService) ListTickets(ctx context.Context, product string, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, product, filter)
}

// ListMessages returns the full thread for a ticket ordered by creation
// time ascending.
func (s *QueryService) ListMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticketID)
}

// Dashboard loads the ticket window for the scope and delegates to the
// analytics aggregator. Summaries are cached briefly since the window is a
// full scan of the period.
func (s *QueryService) Dashboard(ctx context.Context, product string, periodStart, periodEnd time.Time, opts analytics.Options) (*analytics.DashboardSummary, error) {
	key := dashboardCacheKey(product, periodStart, periodEnd, opts)
	if cached := s.cacheGet(ctx, key); cached != nil {
		return cached, nil
	}

	tickets, err := s.tickets.ListWindow(ctx, product, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	summary, err := analytics.ComputeDashboard(product, periodStart, periodEnd, tickets, opts)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, summary)
	return summary, nil
}

func dashboardCacheKey(product string, start, end time.Time, opts analytics.Options) string {
	return fmt.Sprintf("dashboard:%s:%d:%d:%s:%d", product, start.Unix(), end.Unix(), opts.Granularity, opts.TopAgents)
}

func (s *QueryService) cacheGet(ctx context.Context, key string) *analytics.DashboardSummary {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Debug("dashboard cache read failed", zap.Error(err))
		}
		return nil
	}
	var summary analytics.DashboardSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.logger.Debug("dashboard cache entry corrupt", zap.Error(err))
		return nil
	}
	return &summary
}

func (s *QueryService) cacheSet(ctx context.Context, key string, summary *analytics.DashboardSummary) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("dashboard cache write failed", zap.Error(err))
	}
}
