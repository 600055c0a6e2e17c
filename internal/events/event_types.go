package events

import (
	"time"

	"github.com/spec-kit/enrollment-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEnrollmentCompleted EventType = "enrollment_completed"
	EventDatadumpImported    EventType = "datadump_imported"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EnrollmentCompletedPayload payload.
type EnrollmentCompletedPayload struct {
	RequesterEmail string                `json:"requester_email"`
	ProgramType    string                `json:"program_type"`
	Priority       domain.TicketPriority `json:"priority"`
	Subject        string                `json:"subject"`
}

// DatadumpImportedPayload payload.
type DatadumpImportedPayload struct {
	Filename      string `json:"filename"`
	ImportedCount int    `json:"imported_count"`
	SkippedCount  int    `json:"skipped_count"`
}
