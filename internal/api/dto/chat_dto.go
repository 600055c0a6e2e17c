package dto

import (
	"time"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// ChatRequest payload.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}

// ChatResponse returns the assistant turn plus the session's visible state.
type ChatResponse struct {
	Message       string               `json:"message"`
	SessionID     string               `json:"session_id"`
	IsComplete    bool                 `json:"is_complete"`
	NextStep      domain.Step          `json:"next_step"`
	CollectedData domain.CollectedData `json:"collected_data"`
	Error         string               `json:"error,omitempty"`
}

// TurnResponse is one conversation message.
type TurnResponse struct {
	Role       domain.TurnRole `json:"role"`
	Content    string          `json:"content"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// SessionResponse is the full session projection.
type SessionResponse struct {
	SessionID     string               `json:"session_id"`
	UserID        string               `json:"user_id"`
	Messages      []TurnResponse       `json:"messages"`
	CurrentStep   domain.Step          `json:"current_step"`
	CollectedData domain.CollectedData `json:"collected_data"`
	IsComplete    bool                 `json:"is_complete"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}
