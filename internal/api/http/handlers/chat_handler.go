package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/enrollment-service/internal/api/dto"
	"github.com/spec-kit/enrollment-service/internal/service"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

// ChatHandler processes enrollment conversation turns.
type ChatHandler struct {
	enrollment *service.EnrollmentService
}

// NewChatHandler constructs handler.
func NewChatHandler(enrollment *service.EnrollmentService) *ChatHandler {
	return &ChatHandler{enrollment: enrollment}
}

// Chat POST /api/chat.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Message == "" || req.SessionID == "" {
		return apperrors.NewValidationError("message and session_id required", nil)
	}

	result, err := h.enrollment.HandleTurn(c.UserContext(), req.SessionID, req.UserID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(dto.ChatResponse{
		Message:       result.AssistantMessage,
		SessionID:     result.SessionID,
		IsComplete:    result.IsComplete,
		NextStep:      result.CurrentStep,
		CollectedData: result.Collected,
		Error:         result.ExtractorError,
	})
}
