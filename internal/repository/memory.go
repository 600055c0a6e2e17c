package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// In-memory store implementations. Selected at startup when no Postgres DSN
// or Redis address is configured, and used as fixtures by the package tests.

type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.EnrollmentSession
	locks    map[string]string
}

// NewMemorySessionRepository returns a process-local session store.
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]domain.EnrollmentSession),
		locks:    make(map[string]string),
	}
}

func (r *memorySessionRepository) Get(_ context.Context, sessionID string) (*domain.EnrollmentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := session
	copied.Turns = append([]domain.Turn(nil), session.Turns...)
	return &copied, nil
}

func (r *memorySessionRepository) Put(_ context.Context, session *domain.EnrollmentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	copied.Turns = append([]domain.Turn(nil), session.Turns...)
	r.sessions[session.SessionID] = copied
	return nil
}

func (r *memorySessionRepository) Exists(_ context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok, nil
}

func (r *memorySessionRepository) AcquireLock(_ context.Context, sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks[sessionID] != "" {
		return "", nil
	}
	token := uuid.NewString()
	r.locks[sessionID] = token
	return token, nil
}

// ReleaseLock is a no-op when the token no longer owns the lock, mirroring
// the compare-and-delete in the Redis implementation.
func (r *memorySessionRepository) ReleaseLock(_ context.Context, sessionID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks[sessionID] == token {
		delete(r.locks, sessionID)
	}
	return nil
}

type memoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository returns a process-local ticket store.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *memoryTicketRepository) Upsert(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tickets[ticket.ID]
	if !ok {
		r.tickets[ticket.ID] = copyTicket(*ticket)
		return nil
	}
	// Same merge rules as the SQL ON CONFLICT clause.
	existing.Subject = ticket.Subject
	existing.Description = ticket.Description
	existing.Status = ticket.Status
	existing.Priority = ticket.Priority
	existing.RequesterEmail = ticket.RequesterEmail
	existing.Tags = append([]string(nil), ticket.Tags...)
	existing.UpdatedAt = ticket.UpdatedAt
	r.tickets[ticket.ID] = existing
	return nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := copyTicket(ticket)
	return &copied, nil
}

func (r *memoryTicketRepository) GetBySession(_ context.Context, sessionID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.SessionID != "" && ticket.SessionID == sessionID {
			copied := copyTicket(ticket)
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryTicketRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(r.tickets, id)
	return nil
}

func (r *memoryTicketRepository) List(_ context.Context, limit, offset int) ([]domain.Ticket, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.Lock()
	all := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		all = append(all, copyTicket(ticket))
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []domain.Ticket{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func copyTicket(t domain.Ticket) domain.Ticket {
	copied := t
	copied.Tags = append([]string(nil), t.Tags...)
	if t.MemberDetails != nil {
		copied.MemberDetails = make(map[string]string, len(t.MemberDetails))
		for k, v := range t.MemberDetails {
			copied.MemberDetails[k] = v
		}
	}
	return copied
}
