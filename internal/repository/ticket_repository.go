package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// TicketRepository encapsulates ticket persistence for both creation paths
// (enrollment completion and datadump import).
type TicketRepository interface {
	// Upsert inserts the ticket or, when ticket_id already exists, merges
	// the import-owned fields onto the stored row. Later writes win on
	// subject, description, status, priority, requester_email and tags;
	// enrollment-owned fields (session correlation, member details,
	// category, assignee) and created_at keep their first-write values.
	Upsert(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetBySession(ctx context.Context, sessionID string) (*domain.Ticket, error)
	// Delete removes a ticket; used to compensate a failed enrollment
	// completion so no ticket exists without its completed session.
	Delete(ctx context.Context, id string) error
	// List returns tickets ordered by created_at descending with a stable
	// tie-break on ticket_id, plus the total row count.
	List(ctx context.Context, limit, offset int) ([]domain.Ticket, int, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Upsert(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, session_id, subject, description, category, assignee,
                             priority, status, requester_email, member_details, tags,
                             created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (id) DO UPDATE SET
            subject         = EXCLUDED.subject,
            description     = EXCLUDED.description,
            status          = EXCLUDED.status,
            priority        = EXCLUDED.priority,
            requester_email = EXCLUDED.requester_email,
            tags            = EXCLUDED.tags,
            updated_at      = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.SessionID,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.Assignee,
		ticket.Priority,
		ticket.Status,
		ticket.RequesterEmail,
		ticket.MemberDetails,
		ticket.Tags,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return err
}

const ticketColumns = `id, session_id, subject, description, category, assignee,
        priority, status, requester_email, member_details, tags, created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetBySession(ctx context.Context, sessionID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE session_id=$1 LIMIT 1`
	return r.fetchSingle(ctx, query, sessionID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) List(ctx context.Context, limit, offset int) ([]domain.Ticket, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, 0, err
		}
		result = append(result, ticket)
	}
	return result, total, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.SessionID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.Assignee,
		&ticket.Priority,
		&ticket.Status,
		&ticket.RequesterEmail,
		&ticket.MemberDetails,
		&ticket.Tags,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}
