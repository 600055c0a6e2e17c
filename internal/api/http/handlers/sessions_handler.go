package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/enrollment-service/internal/api/dto"
	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/service"
)

// SessionsHandler serves session projections, correlated tickets and
// enrollment summaries.
type SessionsHandler struct {
	enrollment *service.EnrollmentService
	summary    *service.SummaryService
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(enrollment *service.EnrollmentService, summary *service.SummaryService) *SessionsHandler {
	return &SessionsHandler{enrollment: enrollment, summary: summary}
}

// GetSession GET /api/session/:session_id.
func (h *SessionsHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.enrollment.GetSession(c.UserContext(), c.Params("session_id"))
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(session))
}

// GetTicket GET /api/ticket/:session_id.
func (h *SessionsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.enrollment.GetTicketForSession(c.UserContext(), c.Params("session_id"))
	if err != nil {
		return err
	}
	return c.JSON(ticketResponse(ticket))
}

// GetSummary GET /api/summary/:session_id.
func (h *SessionsHandler) GetSummary(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	data, err := h.summary.GeneratePDF(c.UserContext(), sessionID)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="enrollment_summary_%s.pdf"`, sessionID))
	return c.Send(data)
}

func sessionResponse(session *domain.EnrollmentSession) dto.SessionResponse {
	messages := make([]dto.TurnResponse, 0, len(session.Turns))
	for _, turn := range session.Turns {
		messages = append(messages, dto.TurnResponse{
			Role:       turn.Role,
			Content:    turn.Content,
			OccurredAt: turn.OccurredAt,
		})
	}
	return dto.SessionResponse{
		SessionID:     session.SessionID,
		UserID:        session.UserID,
		Messages:      messages,
		CurrentStep:   session.CurrentStep,
		CollectedData: session.Collected,
		IsComplete:    session.IsComplete,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		TicketID:       ticket.ID,
		Subject:        ticket.Subject,
		Description:    ticket.Description,
		Category:       ticket.Category,
		Assignee:       ticket.Assignee,
		Priority:       ticket.Priority,
		Status:         ticket.Status,
		RequesterEmail: ticket.RequesterEmail,
		MemberDetails:  ticket.MemberDetails,
		Tags:           ticket.Tags,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}
