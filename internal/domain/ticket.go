package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusPending TicketStatus = "pending"
	TicketStatusSolved  TicketStatus = "solved"
	TicketStatusClosed  TicketStatus = "closed"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityUrgent TicketPriority = "urgent"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityLow    TicketPriority = "low"
)

// NormalizeStatus lower-cases the value and reports whether it belongs to the
// known status set. Unknown values are returned as-is for the caller to flag.
func NormalizeStatus(raw string) (TicketStatus, bool) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case TicketStatusOpen, TicketStatusPending, TicketStatusSolved, TicketStatusClosed:
		return status, true
	}
	return status, false
}

// NormalizePriority lower-cases the value and reports whether it belongs to
// the known priority set.
func NormalizePriority(raw string) (TicketPriority, bool) {
	priority := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	switch priority {
	case TicketPriorityUrgent, TicketPriorityHigh, TicketPriorityNormal, TicketPriorityLow:
		return priority, true
	}
	return priority, false
}

// Ticket is the aggregate for support requests, created either at enrollment
// completion or by datadump import.
type Ticket struct {
	ID             string
	SessionID      string
	Subject        string
	Description    string
	Category       string
	Assignee       string
	Priority       TicketPriority
	Status         TicketStatus
	RequesterEmail string
	MemberDetails  map[string]string
	Tags           []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
