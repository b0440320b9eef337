package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

// MessageRepository manages ticket thread messages.
//
// AppendAtomic inserts the message and, when setFirstResponse is true, sets
// the ticket's first_response_at to the message timestamp in the same
// transaction, but only if it is still null. The returned flag reports
// whether this call won that conditional update, so two concurrent first
// responses can never both win.
type MessageRepository interface {
	AppendAtomic(ctx context.Context, msg *domain.TicketMessage, setFirstResponse bool) (bool, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds the Postgres-backed repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) AppendAtomic(ctx context.Context, msg *domain.TicketMessage, setFirstResponse bool) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, apperrors.NewStorageError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
        INSERT INTO ticket_messages (id, ticket_id, author_id, is_internal, content)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`
	if err := tx.QueryRow(ctx, insert,
		msg.ID,
		msg.TicketID,
		msg.AuthorID,
		msg.IsInternal,
		msg.Content,
	).Scan(&msg.CreatedAt); err != nil {
		return false, apperrors.NewStorageError(err)
	}

	won := false
	if setFirstResponse {
		const update = `
            UPDATE support_tickets
            SET first_response_at=$1, revision=revision+1, updated_at=NOW()
            WHERE id=$2 AND first_response_at IS NULL AND deleted_at IS NULL`
		cmd, err := tx.Exec(ctx, update, msg.CreatedAt, msg.TicketID)
		if err != nil {
			return false, apperrors.NewStorageError(err)
		}
		won = cmd.RowsAffected() > 0
	}

	if err := tx.Commit(ctx); err != nil {
		return false, apperrors.NewStorageError(err)
	}
	return won, nil
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, author_id, is_internal, content, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.AuthorID,
			&msg.IsInternal,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStorageError(err)
		}
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return result, nil
}
