package events

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSLABreached EventType = "sla_breached"
	EventSLAWarning  EventType = "sla_warning"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	ExternalKey string           `json:"external_key"`
	PolicyName  string           `json:"policy_name"`
	Sides       []domain.SLASide `json:"sides"`
	AssigneeID  *string          `json:"assignee_staff_id,omitempty"`
}

// SLAWarningPayload payload.
type SLAWarningPayload struct {
	ExternalKey    string         `json:"external_key"`
	PolicyName     string         `json:"policy_name"`
	Side           domain.SLASide `json:"side"`
	Percentage     float64        `json:"percentage"`
	RemainingHours float64        `json:"remaining_hours"`
	AssigneeID     *string        `json:"assignee_staff_id,omitempty"`
}
