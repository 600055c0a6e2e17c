package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/events"
	"github.com/spec-kit/enrollment-service/internal/extractor"
	"github.com/spec-kit/enrollment-service/internal/repository"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

const (
	ticketCategory = "MP"
	ticketAssignee = "membership-team"

	extractRetryBackoff = 200 * time.Millisecond
)

// EnrollmentService orchestrates enrollment conversations: it serializes
// turns per session, invokes the field extractor, advances the workflow
// stage and materializes a ticket exactly once at completion.
type EnrollmentService struct {
	sessions       repository.SessionRepository
	tickets        repository.TicketRepository
	fields         extractor.Extractor
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	extractTimeout time.Duration
	now            func() time.Time
}

// EnrollmentDependencies bundles collaborators for the engine.
type EnrollmentDependencies struct {
	SessionRepo    repository.SessionRepository
	TicketRepo     repository.TicketRepository
	Extractor      extractor.Extractor
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	ExtractTimeout time.Duration
}

// TurnResult is the engine's answer to one processed turn.
type TurnResult struct {
	AssistantMessage string
	SessionID        string
	IsComplete       bool
	CurrentStep      domain.Step
	Collected        domain.CollectedData
	// ExtractorError carries the failure reason when field extraction did
	// not succeed for this turn. The turn is still recorded and the
	// conversation continues.
	ExtractorError string
}

// NewEnrollmentService constructs the engine.
func NewEnrollmentService(deps EnrollmentDependencies) *EnrollmentService {
	timeout := deps.ExtractTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EnrollmentService{
		sessions:       deps.SessionRepo,
		tickets:        deps.TicketRepo,
		fields:         deps.Extractor,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		extractTimeout: timeout,
		now:            time.Now,
	}
}

// HandleTurn processes a single user message for the given session. Turns
// within one session are strictly serialized; a second concurrent turn for
// the same session fails with a retryable conflict.
func (s *EnrollmentService) HandleTurn(ctx context.Context, sessionID, userID, message string) (*TurnResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperrors.NewValidationError("session_id required", nil)
	}
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.NewValidationError("message required", nil)
	}

	lockToken, err := s.sessions.AcquireLock(ctx, sessionID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if lockToken == "" {
		return nil, apperrors.NewConflict("another turn for this session is in progress", map[string]any{"session_id": sessionID})
	}
	defer func() {
		if err := s.sessions.ReleaseLock(context.WithoutCancel(ctx), sessionID, lockToken); err != nil {
			s.logger.Warn("release session lock", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	session, err := s.loadOrCreate(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session.AppendTurn(domain.RoleUser, message, now)

	if session.IsComplete {
		// Terminal sessions keep accepting turns but never re-materialize.
		reply := "Your membership enrollment is complete! You can download a summary of your enrollment or view your ticket details. Is there anything else I can help you with?"
		session.AppendTurn(domain.RoleAssistant, reply, s.now())
		if err := s.sessions.Put(ctx, session); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		return s.turnResult(session, reply, ""), nil
	}

	updates, extractErr := s.extractWithRetry(ctx, message, session.Collected, session.CurrentStep)
	if extractErr != nil {
		// Conversational continuity over strict correctness: record the
		// turn, leave collected data unchanged and let a later turn retry.
		s.logger.Warn("field extraction failed",
			zap.String("session_id", sessionID), zap.Error(extractErr))
		reply := "I apologize, but I had trouble processing that. Could you say it again?"
		session.AppendTurn(domain.RoleAssistant, reply, s.now())
		if err := s.sessions.Put(ctx, session); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		return s.turnResult(session, reply, extractErr.Error()), nil
	}

	session.Collected.Merge(updates)
	reachedComplete := session.AdvanceStep()

	var reply string
	if reachedComplete {
		ticket, err := s.materializeTicket(ctx, session, now)
		if err != nil {
			return nil, err
		}
		reply = fmt.Sprintf("Perfect! I've generated your membership enrollment ticket (ID: %.8s...). Your enrollment is now being processed by our membership team.", ticket.ID)
		session.AppendTurn(domain.RoleAssistant, reply, s.now())
		if err := s.sessions.Put(ctx, session); err != nil {
			// Roll the ticket back so completion stays atomic: no ticket
			// without is_complete, no is_complete without a ticket.
			if delErr := s.tickets.Delete(context.WithoutCancel(ctx), ticket.ID); delErr != nil {
				s.logger.Error("compensating ticket delete failed",
					zap.String("ticket_id", ticket.ID), zap.Error(delErr))
			}
			return nil, apperrors.NewInternalError(err)
		}
		s.publishCompleted(ctx, session, ticket)
	} else {
		reply = s.scriptReply(session, updates)
		session.AppendTurn(domain.RoleAssistant, reply, s.now())
		if err := s.sessions.Put(ctx, session); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}

	return s.turnResult(session, reply, ""), nil
}

// GetSession returns the full session projection.
func (s *EnrollmentService) GetSession(ctx context.Context, sessionID string) (*domain.EnrollmentSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("session", map[string]any{"session_id": sessionID})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return session, nil
}

// GetTicketForSession resolves the ticket materialized by the session.
func (s *EnrollmentService) GetTicketForSession(ctx context.Context, sessionID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetBySession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"session_id": sessionID})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

func (s *EnrollmentService) loadOrCreate(ctx context.Context, sessionID, userID string) (*domain.EnrollmentSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}
	if userID == "" {
		userID = uuid.NewString()
	}
	return domain.NewEnrollmentSession(sessionID, userID, s.now()), nil
}

// extractWithRetry bounds the extractor call by the configured timeout and
// retries once with backoff before surfacing the failure as retryable.
func (s *EnrollmentService) extractWithRetry(ctx context.Context, message string, current domain.CollectedData, step domain.Step) (domain.FieldUpdates, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.FieldUpdates{}, apperrors.NewUpstreamTimeout("field extraction", ctx.Err())
			case <-time.After(extractRetryBackoff):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, s.extractTimeout)
		updates, err := s.fields.Extract(callCtx, message, current, step)
		cancel()
		if err == nil {
			return updates, nil
		}
		lastErr = err
	}
	if errors.Is(lastErr, context.DeadlineExceeded) {
		return domain.FieldUpdates{}, apperrors.NewUpstreamTimeout("field extraction", lastErr)
	}
	return domain.FieldUpdates{}, lastErr
}

func (s *EnrollmentService) materializeTicket(ctx context.Context, session *domain.EnrollmentSession, now time.Time) (*domain.Ticket, error) {
	programType := session.Collected.ProgramType
	ticket := &domain.Ticket{
		ID:             uuid.NewString(),
		SessionID:      session.SessionID,
		Subject:        fmt.Sprintf("Membership Enrollment - %s", programType),
		Description:    fmt.Sprintf("New membership enrollment request for %s program", programType),
		Category:       ticketCategory,
		Assignee:       ticketAssignee,
		Priority:       domain.TicketPriorityNormal,
		Status:         domain.TicketStatusOpen,
		RequesterEmail: session.Collected.Email,
		MemberDetails:  session.Collected.Snapshot(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.tickets.Upsert(ctx, ticket); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	session.IsComplete = true
	session.TicketID = ticket.ID
	return ticket, nil
}

func (s *EnrollmentService) publishCompleted(ctx context.Context, session *domain.EnrollmentSession, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventEnrollmentCompleted,
		SessionID: session.SessionID,
		TicketID:  ticket.ID,
		Timestamp: s.now(),
		Payload: events.EnrollmentCompletedPayload{
			RequesterEmail: ticket.RequesterEmail,
			ProgramType:    session.Collected.ProgramType,
			Priority:       ticket.Priority,
			Subject:        ticket.Subject,
		},
	})
}

// scriptReply produces the assistant's next message: an acknowledgment of
// what this turn captured followed by the question for the first missing
// required field.
func (s *EnrollmentService) scriptReply(session *domain.EnrollmentSession, updates domain.FieldUpdates) string {
	var parts []string

	switch {
	case updates.Name != "":
		parts = append(parts, fmt.Sprintf("Thank you, %s!", updates.Name))
	case updates.Email != "":
		parts = append(parts, "Great! I've recorded your email address.")
	case updates.Company != "" || updates.JobTitle != "":
		parts = append(parts, "Perfect, I've noted your work details.")
	case updates.ProgramType != "":
		parts = append(parts, fmt.Sprintf("Excellent! You're interested in the %s program.", updates.ProgramType))
	case len(session.Turns) <= 1:
		parts = append(parts, "Welcome to our membership enrollment process! I'm here to help you get started.")
	}

	switch session.MissingAfter() {
	case "name":
		parts = append(parts, "What is your full name?")
	case "email":
		parts = append(parts, "What is your email address?")
	case "company":
		parts = append(parts, "What is your company name?")
	case "job_title":
		parts = append(parts, "What is your job title?")
	case "program_type":
		parts = append(parts, "What type of membership program are you interested in? (e.g., Basic, Premium, Corporate)")
	default:
		parts = append(parts, "Let me validate your information and prepare your membership enrollment.")
	}

	return strings.Join(parts, " ")
}

func (s *EnrollmentService) turnResult(session *domain.EnrollmentSession, reply, extractorErr string) *TurnResult {
	return &TurnResult{
		AssistantMessage: reply,
		SessionID:        session.SessionID,
		IsComplete:       session.IsComplete,
		CurrentStep:      session.CurrentStep,
		Collected:        session.Collected,
		ExtractorError:   extractorErr,
	}
}
