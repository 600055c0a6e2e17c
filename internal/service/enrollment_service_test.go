package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/events"
	"github.com/spec-kit/enrollment-service/internal/extractor"
	"github.com/spec-kit/enrollment-service/internal/repository"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

type failingExtractor struct {
	err error
}

func (f *failingExtractor) Extract(context.Context, string, domain.CollectedData, domain.Step) (domain.FieldUpdates, error) {
	return domain.FieldUpdates{}, f.err
}

func newTestEnrollmentService(fields extractor.Extractor) (*EnrollmentService, repository.SessionRepository, repository.TicketRepository) {
	sessions := repository.NewMemorySessionRepository()
	tickets := repository.NewMemoryTicketRepository()
	svc := NewEnrollmentService(EnrollmentDependencies{
		SessionRepo:    sessions,
		TicketRepo:     tickets,
		Extractor:      fields,
		Dispatcher:     events.NewInMemoryDispatcher(),
		Logger:         zap.NewNop(),
		ExtractTimeout: time.Second,
	})
	return svc, sessions, tickets
}

func domainErr(t *testing.T, err error) *apperrors.DomainError {
	t.Helper()
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	return de
}

func TestHandleTurnTwoTurnCompletion(t *testing.T) {
	svc, _, tickets := newTestEnrollmentService(extractor.NewRuleExtractor())
	ctx := context.Background()

	first, err := svc.HandleTurn(ctx, "s1", "u1", "Hi, I'm Jane, jane@x.com")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.IsComplete {
		t.Fatal("session complete after first turn")
	}
	if first.CurrentStep != domain.StepCollectingContext {
		t.Errorf("step = %q, want %q", first.CurrentStep, domain.StepCollectingContext)
	}
	if first.Collected.Name != "Jane" || first.Collected.Email != "jane@x.com" {
		t.Errorf("collected = %+v", first.Collected)
	}
	if !strings.Contains(first.AssistantMessage, "company") {
		t.Errorf("expected prompt for company, got %q", first.AssistantMessage)
	}

	second, err := svc.HandleTurn(ctx, "s1", "u1", "I work at Acme as a developer, interested in Premium")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !second.IsComplete {
		t.Fatal("session not complete after second turn")
	}
	if second.CurrentStep != domain.StepComplete {
		t.Errorf("step = %q, want %q", second.CurrentStep, domain.StepComplete)
	}
	if !strings.Contains(second.AssistantMessage, "ID:") {
		t.Errorf("completion reply missing ticket id: %q", second.AssistantMessage)
	}

	ticket, err := tickets.GetBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ticket lookup: %v", err)
	}
	if ticket.RequesterEmail != "jane@x.com" {
		t.Errorf("requester_email = %q", ticket.RequesterEmail)
	}
	if ticket.Subject != "Membership Enrollment - Premium" {
		t.Errorf("subject = %q", ticket.Subject)
	}
	if ticket.Category != "MP" || ticket.Assignee != "membership-team" {
		t.Errorf("category/assignee = %q/%q", ticket.Category, ticket.Assignee)
	}
	if ticket.Status != domain.TicketStatusOpen || ticket.Priority != domain.TicketPriorityNormal {
		t.Errorf("status/priority = %q/%q", ticket.Status, ticket.Priority)
	}
	if ticket.MemberDetails["job_title"] != "developer" {
		t.Errorf("member_details = %v", ticket.MemberDetails)
	}
}

func TestHandleTurnCompletedSessionStaysTerminal(t *testing.T) {
	svc, _, tickets := newTestEnrollmentService(extractor.NewRuleExtractor())
	ctx := context.Background()

	if _, err := svc.HandleTurn(ctx, "s1", "u1", "Hi, I'm Jane, jane@x.com"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := svc.HandleTurn(ctx, "s1", "u1", "I work at Acme as a developer, interested in Premium"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	third, err := svc.HandleTurn(ctx, "s1", "u1", "I work at Initech as a manager, make it Corporate")
	if err != nil {
		t.Fatalf("third turn: %v", err)
	}
	if !third.IsComplete {
		t.Error("completed session reported incomplete")
	}

	_, total, err := tickets.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Errorf("ticket count = %d, want exactly 1", total)
	}
	ticket, err := tickets.GetBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ticket lookup: %v", err)
	}
	if ticket.Subject != "Membership Enrollment - Premium" {
		t.Errorf("terminal session re-materialized: subject = %q", ticket.Subject)
	}
}

func TestHandleTurnOutOfOrderFieldsDoNotSkipStages(t *testing.T) {
	svc, _, _ := newTestEnrollmentService(extractor.NewRuleExtractor())
	ctx := context.Background()

	res, err := svc.HandleTurn(ctx, "s1", "u1", "I want the Premium plan")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.IsComplete {
		t.Fatal("session completed without identity fields")
	}
	if res.CurrentStep != domain.StepCollectingIdentity {
		t.Errorf("step = %q, want %q", res.CurrentStep, domain.StepCollectingIdentity)
	}
	if res.Collected.ProgramType != "Premium" {
		t.Errorf("program type = %q, want retained early value", res.Collected.ProgramType)
	}
	if !strings.Contains(res.AssistantMessage, "full name") {
		t.Errorf("expected prompt for name, got %q", res.AssistantMessage)
	}
}

func TestHandleTurnStageNeverRegresses(t *testing.T) {
	svc, sessions, _ := newTestEnrollmentService(extractor.NewRuleExtractor())
	ctx := context.Background()

	if _, err := svc.HandleTurn(ctx, "s1", "u1", "Hi, I'm Jane, jane@x.com"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	res, err := svc.HandleTurn(ctx, "s1", "u1", "hello there how are you doing today friend")
	if err != nil {
		t.Fatalf("chatter turn: %v", err)
	}
	if res.CurrentStep != domain.StepCollectingContext {
		t.Errorf("step = %q, want %q after no-op turn", res.CurrentStep, domain.StepCollectingContext)
	}

	session, err := sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got := len(session.Turns); got != 4 {
		t.Errorf("turn count = %d, want 4 (two exchanges)", got)
	}
}

func TestHandleTurnExtractorFailureKeepsConversationAlive(t *testing.T) {
	svc, sessions, _ := newTestEnrollmentService(&failingExtractor{err: errors.New("model unavailable")})
	ctx := context.Background()

	res, err := svc.HandleTurn(ctx, "s1", "u1", "Hi, I'm Jane, jane@x.com")
	if err != nil {
		t.Fatalf("turn should not fail: %v", err)
	}
	if res.ExtractorError == "" {
		t.Error("expected extractor error to be surfaced in result")
	}
	if res.IsComplete {
		t.Error("session marked complete after failed extraction")
	}
	if res.Collected != (domain.CollectedData{}) {
		t.Errorf("collected data changed: %+v", res.Collected)
	}
	if !strings.Contains(res.AssistantMessage, "trouble processing") {
		t.Errorf("reply = %q", res.AssistantMessage)
	}

	session, err := sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if got := len(session.Turns); got != 2 {
		t.Errorf("turn count = %d, want user turn plus apology", got)
	}
}

func TestHandleTurnConcurrentTurnConflicts(t *testing.T) {
	svc, sessions, _ := newTestEnrollmentService(extractor.NewRuleExtractor())
	ctx := context.Background()

	token, err := sessions.AcquireLock(ctx, "s1")
	if err != nil || token == "" {
		t.Fatalf("setup lock: token=%q err=%v", token, err)
	}
	defer sessions.ReleaseLock(ctx, "s1", token) //nolint:errcheck

	_, err = svc.HandleTurn(ctx, "s1", "u1", "Hi, I'm Jane")
	de := domainErr(t, err)
	if de.HTTPStatus != http.StatusConflict {
		t.Errorf("status = %d, want 409", de.HTTPStatus)
	}
	if !de.Retryable {
		t.Error("conflict should be retryable")
	}
}

func TestHandleTurnReleasesLockAfterTurn(t *testing.T) {
	svc, sessions, _ := newTestEnrollmentService(extractor.NewRuleExtractor())
	ctx := context.Background()

	if _, err := svc.HandleTurn(ctx, "s1", "u1", "Hi, I'm Jane, jane@x.com"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	token, err := sessions.AcquireLock(ctx, "s1")
	if err != nil {
		t.Fatalf("acquire after turn: %v", err)
	}
	if token == "" {
		t.Error("lock still held after turn finished")
	}
}

func TestHandleTurnValidation(t *testing.T) {
	svc, _, _ := newTestEnrollmentService(extractor.NewRuleExtractor())
	ctx := context.Background()

	_, err := svc.HandleTurn(ctx, "", "u1", "hello")
	if de := domainErr(t, err); de.HTTPStatus != http.StatusBadRequest {
		t.Errorf("empty session_id: status = %d, want 400", de.HTTPStatus)
	}

	_, err = svc.HandleTurn(ctx, "s1", "u1", "   ")
	if de := domainErr(t, err); de.HTTPStatus != http.StatusBadRequest {
		t.Errorf("empty message: status = %d, want 400", de.HTTPStatus)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	svc, _, _ := newTestEnrollmentService(extractor.NewRuleExtractor())

	_, err := svc.GetSession(context.Background(), "missing")
	if de := domainErr(t, err); de.HTTPStatus != http.StatusNotFound {
		t.Errorf("status = %d, want 404", de.HTTPStatus)
	}
}

func TestGetTicketForSessionNotFound(t *testing.T) {
	svc, _, _ := newTestEnrollmentService(extractor.NewRuleExtractor())

	_, err := svc.GetTicketForSession(context.Background(), "missing")
	if de := domainErr(t, err); de.HTTPStatus != http.StatusNotFound {
		t.Errorf("status = %d, want 404", de.HTTPStatus)
	}
}
