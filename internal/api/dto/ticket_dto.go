package dto

import (
	"time"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// TicketResponse payload.
type TicketResponse struct {
	TicketID       string                `json:"ticket_id"`
	Subject        string                `json:"subject"`
	Description    string                `json:"description"`
	Category       string                `json:"category,omitempty"`
	Assignee       string                `json:"assignee,omitempty"`
	Priority       domain.TicketPriority `json:"priority"`
	Status         domain.TicketStatus   `json:"status"`
	RequesterEmail string                `json:"requester_email"`
	MemberDetails  map[string]string     `json:"member_details,omitempty"`
	Tags           []string              `json:"tags,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TicketListResponse wraps a page of tickets.
type TicketListResponse struct {
	Tickets []TicketResponse `json:"tickets"`
	Total   int              `json:"total"`
}

// DatadumpResponse summarizes an ingestion call.
type DatadumpResponse struct {
	Message       string                `json:"message"`
	ImportedCount int                   `json:"imported_count"`
	SkippedCount  int                   `json:"skipped_count"`
	Errors        []RecordErrorResponse `json:"errors,omitempty"`
}

// RecordErrorResponse reports one problem record from an ingestion call.
type RecordErrorResponse struct {
	RecordIndex int    `json:"record_index"`
	Reason      string `json:"reason"`
	Warning     bool   `json:"warning,omitempty"`
}
