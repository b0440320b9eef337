package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

// DefaultListLimit caps unpaginated listing requests.
const DefaultListLimit = 20

// TicketFilter captures listing parameters. All fields are optional.
type TicketFilter struct {
	CustomerID *string
	AssigneeID *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Category   *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository is the durable store adapter for tickets.
//
// GetByID excludes soft-deleted rows. Save is an atomic compare-and-swap on
// the revision column: a mismatch surfaces as a conflict and leaves the row
// untouched.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Save(ctx context.Context, ticket *domain.Ticket, expectedRevision int64) error
	ListWithFilter(ctx context.Context, product string, filter TicketFilter) ([]domain.Ticket, error)
	ListWindow(ctx context.Context, product string, start, end time.Time) ([]domain.Ticket, error)
	ListBreachCandidates(ctx context.Context, limit int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, product, customer_id, subject, description, status, priority, category,
               assigned_to, first_response_at, resolved_at, closed_at, sla_breach, csat_score,
               metadata, revision, created_at, updated_at, deleted_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO support_tickets (id, product, customer_id, subject, description, status, priority, category, assigned_to, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING revision, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Product,
		ticket.CustomerID,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.AssignedTo,
		ticket.Metadata,
	).Scan(&ticket.Revision, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE id=$1 AND deleted_at IS NULL`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Save(ctx context.Context, ticket *domain.Ticket, expectedRevision int64) error {
	const query = `
        UPDATE support_tickets SET subject=$1, description=$2, status=$3, priority=$4, category=$5,
            assigned_to=$6, first_response_at=$7, resolved_at=$8, closed_at=$9, sla_breach=$10,
            csat_score=$11, metadata=$12, deleted_at=$13, revision=revision+1, updated_at=NOW()
        WHERE id=$14 AND revision=$15 AND deleted_at IS NULL
        RETURNING revision, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.AssignedTo,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.SLABreach,
		ticket.CsatScore,
		ticket.Metadata,
		ticket.DeletedAt,
		ticket.ID,
		expectedRevision,
	).Scan(&ticket.Revision, &ticket.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewStorageError(err)
	}

	// Zero rows means either the ticket is gone or the revision moved on.
	var current int64
	probe := r.pool.QueryRow(ctx, `SELECT revision FROM support_tickets WHERE id=$1 AND deleted_at IS NULL`, ticket.ID)
	if err := probe.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": ticket.ID})
		}
		return apperrors.NewStorageError(err)
	}
	return apperrors.NewConflict("ticket revision mismatch", map[string]any{
		"id":       ticket.ID,
		"expected": expectedRevision,
		"actual":   current,
	})
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, product string, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"product=$1", "deleted_at IS NULL"}
	args := []any{product}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		clauses = append(clauses, fmt.Sprintf("LOWER(subject) LIKE $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM support_tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWindow(ctx context.Context, product string, start, end time.Time) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM support_tickets
        WHERE product=$1 AND deleted_at IS NULL AND created_at >= $2 AND created_at < $3
        ORDER BY created_at ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, product, start, end)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListBreachCandidates(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`
        SELECT %s FROM support_tickets
        WHERE deleted_at IS NULL AND sla_breach = FALSE
          AND (first_response_at IS NULL OR resolved_at IS NULL)
        ORDER BY created_at ASC LIMIT %d`, ticketColumns, limit)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Product,
		&ticket.CustomerID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.AssignedTo,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.SLABreach,
		&ticket.CsatScore,
		&ticket.Metadata,
		&ticket.Revision,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.DeletedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, apperrors.NewStorageError(err)
		}
		result = append(result, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return result, nil
}
