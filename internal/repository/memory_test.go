package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

func TestMemorySessionRepositoryRoundTrip(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: %v, want ErrNotFound", err)
	}

	session := domain.NewEnrollmentSession("s1", "u1", time.Now())
	session.AppendTurn(domain.RoleUser, "hello", time.Now())
	if err := repo.Put(ctx, session); err != nil {
		t.Fatalf("put: %v", err)
	}

	// mutating the caller's copy must not leak into the store
	session.AppendTurn(domain.RoleUser, "leaked", time.Now())

	stored, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Turns) != 1 || stored.Turns[0].Content != "hello" {
		t.Errorf("stored turns = %+v", stored.Turns)
	}

	exists, err := repo.Exists(ctx, "s1")
	if err != nil || !exists {
		t.Errorf("exists = %v, %v", exists, err)
	}
}

func TestMemorySessionRepositoryLock(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	token, err := repo.AcquireLock(ctx, "s1")
	if err != nil || token == "" {
		t.Fatalf("first acquire = %q, %v", token, err)
	}
	contended, err := repo.AcquireLock(ctx, "s1")
	if err != nil || contended != "" {
		t.Fatalf("second acquire = %q, %v, want contention", contended, err)
	}

	// a different session is independent
	other, err := repo.AcquireLock(ctx, "s2")
	if err != nil || other == "" {
		t.Fatalf("other session acquire = %q, %v", other, err)
	}

	if err := repo.ReleaseLock(ctx, "s1", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	token, err = repo.AcquireLock(ctx, "s1")
	if err != nil || token == "" {
		t.Errorf("acquire after release = %q, %v", token, err)
	}
}

func TestMemorySessionRepositoryStaleReleaseKeepsSuccessorLock(t *testing.T) {
	repo := NewMemorySessionRepository()
	ctx := context.Background()

	// writer A holds the lock, then loses it (expiry in the Redis
	// implementation) before its deferred release runs
	staleToken, err := repo.AcquireLock(ctx, "s1")
	if err != nil || staleToken == "" {
		t.Fatalf("first acquire = %q, %v", staleToken, err)
	}
	if err := repo.ReleaseLock(ctx, "s1", staleToken); err != nil {
		t.Fatalf("release: %v", err)
	}

	// writer B now owns the lock
	successorToken, err := repo.AcquireLock(ctx, "s1")
	if err != nil || successorToken == "" {
		t.Fatalf("successor acquire = %q, %v", successorToken, err)
	}

	// A's late release must not free B's lock
	if err := repo.ReleaseLock(ctx, "s1", staleToken); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if token, err := repo.AcquireLock(ctx, "s1"); err != nil || token != "" {
		t.Errorf("acquire after stale release = %q, %v, want contention", token, err)
	}

	// B's own release still works
	if err := repo.ReleaseLock(ctx, "s1", successorToken); err != nil {
		t.Fatalf("successor release: %v", err)
	}
	if token, err := repo.AcquireLock(ctx, "s1"); err != nil || token == "" {
		t.Errorf("acquire after successor release = %q, %v", token, err)
	}
}

func TestMemoryTicketRepositoryUpsertPreservesEnrollmentFields(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.Upsert(ctx, &domain.Ticket{
		ID:            "t1",
		SessionID:     "s1",
		Subject:       "Membership Enrollment - Premium",
		Category:      "MP",
		Assignee:      "membership-team",
		MemberDetails: map[string]string{"name": "Jane"},
		CreatedAt:     created,
		UpdatedAt:     created,
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// a later import for the same id updates the mutable columns only
	later := created.Add(24 * time.Hour)
	if err := repo.Upsert(ctx, &domain.Ticket{
		ID:        "t1",
		Subject:   "Imported subject",
		Status:    domain.TicketStatusSolved,
		Tags:      []string{"import"},
		CreatedAt: later,
		UpdatedAt: later,
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	ticket, err := repo.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ticket.Subject != "Imported subject" || ticket.Status != domain.TicketStatusSolved {
		t.Errorf("mutable columns not updated: %+v", ticket)
	}
	if ticket.SessionID != "s1" || ticket.Category != "MP" || ticket.Assignee != "membership-team" {
		t.Errorf("enrollment-owned columns were overwritten: %+v", ticket)
	}
	if ticket.MemberDetails["name"] != "Jane" {
		t.Errorf("member details lost: %v", ticket.MemberDetails)
	}
	if !ticket.CreatedAt.Equal(created) {
		t.Errorf("created_at changed: %v", ticket.CreatedAt)
	}
	if !ticket.UpdatedAt.Equal(later) {
		t.Errorf("updated_at not advanced: %v", ticket.UpdatedAt)
	}
}

func TestMemoryTicketRepositoryGetBySession(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	if err := repo.Upsert(ctx, &domain.Ticket{ID: "t1", SessionID: "s1", Subject: "x"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, &domain.Ticket{ID: "t2", Subject: "imported, no session"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ticket, err := repo.GetBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if ticket.ID != "t1" {
		t.Errorf("ticket = %+v", ticket)
	}

	// empty session ids never match
	if _, err := repo.GetBySession(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty session lookup: %v, want ErrNotFound", err)
	}
}

func TestMemoryTicketRepositoryListOrderAndPaging(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		id string
		at time.Time
	}{
		{"b", base},
		{"a", base},
		{"c", base.Add(time.Hour)},
	} {
		if err := repo.Upsert(ctx, &domain.Ticket{ID: tc.id, Subject: "x", CreatedAt: tc.at}); err != nil {
			t.Fatalf("upsert %s: %v", tc.id, err)
		}
	}

	tickets, total, err := repo.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(tickets) != 2 || tickets[0].ID != "c" || tickets[1].ID != "a" {
		t.Errorf("page 1 = %v", ticketIDs(tickets))
	}

	tickets, _, err = repo.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != "b" {
		t.Errorf("page 2 = %v", ticketIDs(tickets))
	}

	tickets, total, err = repo.List(ctx, 10, 10)
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(tickets) != 0 || total != 3 {
		t.Errorf("past-end page = %v (total %d)", ticketIDs(tickets), total)
	}
}

func TestMemoryTicketRepositoryDelete(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	if err := repo.Upsert(ctx, &domain.Ticket{ID: "t1", Subject: "x"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: %v, want ErrNotFound", err)
	}
}

func ticketIDs(tickets []domain.Ticket) []string {
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	return ids
}
