package service

import (
	"context"

	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/repository"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

// TicketQueryService serves read access to the ticket store.
type TicketQueryService struct {
	tickets repository.TicketRepository
}

// NewTicketQueryService constructs the service.
func NewTicketQueryService(tickets repository.TicketRepository) *TicketQueryService {
	return &TicketQueryService{tickets: tickets}
}

// List returns a page of tickets ordered by created_at descending with a
// stable tie-break on ticket_id, plus the total count.
func (s *TicketQueryService) List(ctx context.Context, limit, offset int) ([]domain.Ticket, int, error) {
	tickets, total, err := s.tickets.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.NewInternalError(err)
	}
	return tickets, total, nil
}
