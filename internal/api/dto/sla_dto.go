package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
)

// AssignPolicyRequest is the body of PUT /staff/sla/tickets/:id/policy.
type AssignPolicyRequest struct {
	Type     domain.TicketType     `json:"type" validate:"required,oneof=INCIDENT SERVICE_REQUEST QUESTION"`
	Priority domain.TicketPriority `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH URGENT"`
}

// WarningsQuery captures GET /staff/sla/warnings parameters.
type WarningsQuery struct {
	Threshold float64 `query:"threshold" json:"threshold" validate:"omitempty,gt=0,lte=100"`
	Sort      string  `query:"sort" json:"sort" validate:"omitempty,oneof=risk created"`
}

// ComplianceResponse renders a ComplianceResult.
type ComplianceResponse struct {
	TicketID              string   `json:"ticket_id"`
	HasSLA                bool     `json:"has_sla"`
	PolicyID              *string  `json:"policy_id"`
	PolicyName            string   `json:"policy_name,omitempty"`
	ResponseHours         float64  `json:"response_hours"`
	ResponseTargetHours   float64  `json:"response_target_hours"`
	ResponseCompliant     *bool    `json:"response_compliant"`
	ResponsePercent       float64  `json:"response_percent"`
	ResolutionHours       float64  `json:"resolution_hours"`
	ResolutionTargetHours float64  `json:"resolution_target_hours"`
	ResolutionCompliant   *bool    `json:"resolution_compliant"`
	ResolutionPercent     float64  `json:"resolution_percent"`
	ProximityScore        *float64 `json:"proximity_score,omitempty"`
}

// PolicyResponse renders an SLA policy.
type PolicyResponse struct {
	ID                      string                `json:"id"`
	Name                    string                `json:"name"`
	TicketType              domain.TicketType     `json:"ticket_type"`
	Priority                domain.TicketPriority `json:"priority"`
	ResponseTargetMinutes   int                   `json:"response_target_minutes"`
	ResolutionTargetMinutes int                   `json:"resolution_target_minutes"`
}

// AssignPolicyResponse reports the outcome of a policy assignment. Policy is
// null when no active policy matched.
type AssignPolicyResponse struct {
	TicketID string          `json:"ticket_id"`
	Assigned bool            `json:"assigned"`
	Policy   *PolicyResponse `json:"policy"`
}

// TicketRef is the ticket summary embedded in breach and warning rows.
type TicketRef struct {
	ID           string                `json:"id"`
	ExternalKey  string                `json:"external_key"`
	Title        string                `json:"title"`
	Type         domain.TicketType     `json:"type"`
	Priority     domain.TicketPriority `json:"priority"`
	Status       domain.TicketStatus   `json:"status"`
	AssigneeID   *string               `json:"assignee_staff_id"`
	AssigneeName *string               `json:"assignee_name"`
	CreatedAt    time.Time             `json:"created_at"`
}

// BreachResponse renders a BreachRecord.
type BreachResponse struct {
	Ticket     TicketRef          `json:"ticket"`
	PolicyName string             `json:"policy_name"`
	Sides      []domain.SLASide   `json:"breached"`
	Compliance ComplianceResponse `json:"compliance"`
}

// WarningResponse renders a WarningRecord.
type WarningResponse struct {
	Ticket         TicketRef      `json:"ticket"`
	PolicyName     string         `json:"policy_name"`
	Side           domain.SLASide `json:"side"`
	ElapsedHours   float64        `json:"elapsed_hours"`
	TargetHours    float64        `json:"target_hours"`
	Percentage     float64        `json:"percentage"`
	RemainingHours float64        `json:"remaining_hours"`
}

// NotificationResponse renders a feed notification.
type NotificationResponse struct {
	Kind           notify.Kind    `json:"kind"`
	TicketID       string         `json:"ticket_id"`
	ExternalKey    string         `json:"external_key"`
	Title          string         `json:"title"`
	PolicyName     string         `json:"policy_name"`
	Side           domain.SLASide `json:"side"`
	Percentage     float64        `json:"percentage"`
	RemainingHours float64        `json:"remaining_hours,omitempty"`
	Message        string         `json:"message"`
}

// FeedResponse is the body of GET /staff/sla/notifications.
type FeedResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Throttled     bool                   `json:"throttled"`
	ScannedAt     *time.Time             `json:"scanned_at,omitempty"`
}

// NewComplianceResponse maps a result. The proximity score is only
// meaningful when a policy applies.
func NewComplianceResponse(r domain.ComplianceResult) ComplianceResponse {
	resp := ComplianceResponse{
		TicketID:              r.TicketID,
		HasSLA:                r.HasSLA,
		PolicyID:              r.PolicyID,
		PolicyName:            r.PolicyName,
		ResponseHours:         r.ResponseHours,
		ResponseTargetHours:   r.ResponseTargetHours,
		ResponseCompliant:     r.ResponseCompliant,
		ResponsePercent:       r.ResponsePercent,
		ResolutionHours:       r.ResolutionHours,
		ResolutionTargetHours: r.ResolutionTargetHours,
		ResolutionCompliant:   r.ResolutionCompliant,
		ResolutionPercent:     r.ResolutionPercent,
	}
	if r.HasSLA {
		score := r.ProximityScore
		resp.ProximityScore = &score
	}
	return resp
}

func NewPolicyResponse(p *domain.SLAPolicy) *PolicyResponse {
	if p == nil {
		return nil
	}
	return &PolicyResponse{
		ID:                      p.ID,
		Name:                    p.Name,
		TicketType:              p.TicketType,
		Priority:                p.Priority,
		ResponseTargetMinutes:   p.ResponseTargetMinutes,
		ResolutionTargetMinutes: p.ResolutionTargetMinutes,
	}
}

func NewTicketRef(t domain.Ticket) TicketRef {
	return TicketRef{
		ID:           t.ID,
		ExternalKey:  t.ExternalKey,
		Title:        t.Title,
		Type:         t.Type,
		Priority:     t.Priority,
		Status:       t.Status,
		AssigneeID:   t.AssigneeID,
		AssigneeName: t.AssigneeName,
		CreatedAt:    t.CreatedAt,
	}
}

func NewBreachResponse(b domain.BreachRecord) BreachResponse {
	return BreachResponse{
		Ticket:     NewTicketRef(b.Ticket),
		PolicyName: b.Policy.Name,
		Sides:      b.Sides(),
		Compliance: NewComplianceResponse(b.Result),
	}
}

func NewWarningResponse(w domain.WarningRecord) WarningResponse {
	return WarningResponse{
		Ticket:         NewTicketRef(w.Ticket),
		PolicyName:     w.Policy.Name,
		Side:           w.Side,
		ElapsedHours:   w.ElapsedHours,
		TargetHours:    w.TargetHours,
		Percentage:     w.Percentage,
		RemainingHours: w.RemainingHours,
	}
}

func NewFeedResponse(b notify.Batch) FeedResponse {
	resp := FeedResponse{
		Notifications: make([]NotificationResponse, 0, len(b.Notifications)),
		Throttled:     b.Throttled,
	}
	if !b.ScannedAt.IsZero() {
		scanned := b.ScannedAt
		resp.ScannedAt = &scanned
	}
	for _, n := range b.Notifications {
		resp.Notifications = append(resp.Notifications, NotificationResponse{
			Kind:           n.Kind,
			TicketID:       n.TicketID,
			ExternalKey:    n.ExternalKey,
			Title:          n.Title,
			PolicyName:     n.PolicyName,
			Side:           n.Side,
			Percentage:     n.Percentage,
			RemainingHours: n.RemainingHours,
			Message:        n.Message,
		})
	}
	return resp
}
