package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen        TicketStatus = "OPEN"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusPendingUser TicketStatus = "PENDING_USER"
	TicketStatusResolved    TicketStatus = "RESOLVED"
	TicketStatusClosed      TicketStatus = "CLOSED"
)

// IsFinal reports whether SLA clocks have stopped for good.
func (s TicketStatus) IsFinal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketType classifies the request for policy lookup.
type TicketType string

const (
	TicketTypeIncident       TicketType = "INCIDENT"
	TicketTypeServiceRequest TicketType = "SERVICE_REQUEST"
	TicketTypeQuestion       TicketType = "QUESTION"
)

// Ticket is the read model the SLA engine consumes. Workflow fields
// (messages, departments, tags) live with the ticket workflow, not here.
type Ticket struct {
	ID              string
	ExternalKey     string
	Title           string
	Type            TicketType
	Priority        TicketPriority
	Status          TicketStatus
	RequesterName   string
	AssigneeID      *string
	AssigneeName    *string
	SLAPolicyID     *string
	CreatedAt       time.Time
	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
}

// TrackedTicket pairs an open ticket with the policy it is measured against.
type TrackedTicket struct {
	Ticket Ticket
	Policy SLAPolicy
}
