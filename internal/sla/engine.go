package sla

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// DefaultWarningThreshold is the percent of a target that triggers a warning.
const DefaultWarningThreshold = 75.0

// TicketStore is the ticket data the engine reads and the one column it writes.
type TicketStore interface {
	GetForSLA(ctx context.Context, id string) (*domain.Ticket, *domain.SLAPolicy, error)
	ListOpenWithPolicy(ctx context.Context) ([]domain.TrackedTicket, error)
	SetSLAPolicy(ctx context.Context, ticketID, policyID string) error
}

// PolicyStore resolves active SLA policies.
type PolicyStore interface {
	FindActive(ctx context.Context, ticketType domain.TicketType, priority domain.TicketPriority) (*domain.SLAPolicy, error)
	Upsert(ctx context.Context, policy *domain.SLAPolicy) error
}

// Engine computes SLA compliance. It holds no per-ticket state; every call
// reads fresh data and measures against the current instant.
type Engine struct {
	tickets  TicketStore
	policies PolicyStore
	calendar *BusinessCalendar
	logger   *zap.Logger
	now      func() time.Time
}

// Dependencies bundles collaborators for the engine.
type Dependencies struct {
	Tickets  TicketStore
	Policies PolicyStore
	Calendar *BusinessCalendar
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewEngine constructs the engine.
func NewEngine(deps Dependencies) *Engine {
	e := &Engine{
		tickets:  deps.Tickets,
		policies: deps.Policies,
		calendar: deps.Calendar,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.calendar == nil {
		e.calendar, _ = NewBusinessCalendar(time.UTC, StandardWeek(), nil)
	}
	return e
}

// Calendar exposes the schedule the engine measures against.
func (e *Engine) Calendar() *BusinessCalendar {
	return e.calendar
}

// BusinessHoursBetween measures open hours between two instants.
func (e *Engine) BusinessHoursBetween(start, end time.Time) float64 {
	return e.calendar.BusinessHoursBetween(start, end)
}

// CheckCompliance loads a ticket with its policy and evaluates it.
func (e *Engine) CheckCompliance(ctx context.Context, ticketID string) (*domain.ComplianceResult, error) {
	ticket, policy, err := e.tickets.GetForSLA(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	result, err := e.Evaluate(ticket, policy, e.now())
	if err != nil {
		return nil, apperrors.NewUnprocessable("MALFORMED_TIMESTAMP", "ticket timestamps cannot be measured",
			map[string]any{"ticket_id": ticketID}, err)
	}
	return &result, nil
}

// Evaluate measures a ticket against policy as of now. A nil policy yields
// a result with HasSLA false and nil compliance flags.
func (e *Engine) Evaluate(ticket *domain.Ticket, policy *domain.SLAPolicy, now time.Time) (domain.ComplianceResult, error) {
	result := domain.ComplianceResult{TicketID: ticket.ID}
	if policy == nil || ticket.SLAPolicyID == nil {
		return result, nil
	}
	if err := validateTimestamps(ticket); err != nil {
		return result, err
	}

	result.HasSLA = true
	result.PolicyID = &policy.ID
	result.PolicyName = policy.Name

	responseEnd := now
	if ticket.FirstResponseAt != nil {
		responseEnd = *ticket.FirstResponseAt
	}
	result.ResponseHours = e.calendar.BusinessHoursBetween(ticket.CreatedAt, responseEnd)
	result.ResponseTargetHours = policy.ResponseTargetHours()
	result.ResponseCompliant = boolPtr(result.ResponseHours <= result.ResponseTargetHours)
	result.ResponsePercent = percentOf(result.ResponseHours, result.ResponseTargetHours)

	resolutionEnd := now
	if ticket.ResolvedAt != nil {
		resolutionEnd = *ticket.ResolvedAt
	}
	result.ResolutionHours = e.calendar.BusinessHoursBetween(ticket.CreatedAt, resolutionEnd)
	result.ResolutionTargetHours = policy.ResolutionTargetHours()
	result.ResolutionCompliant = boolPtr(result.ResolutionHours <= result.ResolutionTargetHours)
	result.ResolutionPercent = percentOf(result.ResolutionHours, result.ResolutionTargetHours)

	result.ProximityScore = ProximityScore(result.ResponsePercent, result.ResolutionPercent)
	return result, nil
}

// FindBreaches returns open tickets past a target, in creation order.
// Tickets that cannot be evaluated are logged and left out.
func (e *Engine) FindBreaches(ctx context.Context) ([]domain.BreachRecord, error) {
	tracked, err := e.tickets.ListOpenWithPolicy(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := e.now()
	breaches := make([]domain.BreachRecord, 0)
	for i := range tracked {
		item := &tracked[i]
		if item.Ticket.Status.IsFinal() {
			continue
		}
		result, ok := e.evaluateTracked(item, now, "breach")
		if !ok {
			continue
		}
		if !isBreached(result) {
			continue
		}
		breaches = append(breaches, domain.BreachRecord{
			Ticket:             item.Ticket,
			Policy:             item.Policy,
			Result:             result,
			ResponseBreached:   isFalse(result.ResponseCompliant),
			ResolutionBreached: isFalse(result.ResolutionCompliant),
		})
	}
	return breaches, nil
}

// FindWarnings returns pending clocks at or above thresholdPercent of their
// target. Breached tickets are never warned. A threshold <= 0 uses the default.
func (e *Engine) FindWarnings(ctx context.Context, thresholdPercent float64) ([]domain.WarningRecord, error) {
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultWarningThreshold
	}
	tracked, err := e.tickets.ListOpenWithPolicy(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := e.now()
	warnings := make([]domain.WarningRecord, 0)
	for i := range tracked {
		item := &tracked[i]
		if item.Ticket.Status.IsFinal() {
			continue
		}
		result, ok := e.evaluateTracked(item, now, "warning")
		if !ok || isBreached(result) {
			continue
		}
		if item.Ticket.FirstResponseAt == nil {
			if w, hit := warningFor(item, domain.SLASideResponse, result.ResponseHours, result.ResponseTargetHours, thresholdPercent); hit {
				warnings = append(warnings, w)
			}
		}
		if item.Ticket.ResolvedAt == nil {
			if w, hit := warningFor(item, domain.SLASideResolution, result.ResolutionHours, result.ResolutionTargetHours, thresholdPercent); hit {
				warnings = append(warnings, w)
			}
		}
	}
	return warnings, nil
}

// OpenCompliance evaluates every open tracked ticket, in creation order.
// Callers that rank use SortByRisk.
func (e *Engine) OpenCompliance(ctx context.Context) ([]domain.ComplianceResult, error) {
	tracked, err := e.tickets.ListOpenWithPolicy(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := e.now()
	results := make([]domain.ComplianceResult, 0, len(tracked))
	for i := range tracked {
		item := &tracked[i]
		if item.Ticket.Status.IsFinal() {
			continue
		}
		if result, ok := e.evaluateTracked(item, now, "compliance"); ok {
			results = append(results, result)
		}
	}
	return results, nil
}

// AssignPolicy attaches the active policy for (type, priority) to the
// ticket. It returns nil without touching the ticket when none matches.
func (e *Engine) AssignPolicy(ctx context.Context, ticketID string, ticketType domain.TicketType, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	if ticketType == "" || priority == "" {
		return nil, apperrors.NewValidationError("type and priority are required", map[string]any{"ticket_id": ticketID})
	}
	policy, err := e.policies.FindActive(ctx, ticketType, priority)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			e.logger.Debug("no sla policy for ticket",
				zap.String("ticket_id", ticketID),
				zap.String("type", string(ticketType)),
				zap.String("priority", string(priority)))
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	if err := e.tickets.SetSLAPolicy(ctx, ticketID, policy.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	e.logger.Info("sla policy assigned",
		zap.String("ticket_id", ticketID),
		zap.String("policy_id", policy.ID),
		zap.String("policy", policy.Name))
	return policy, nil
}

func (e *Engine) evaluateTracked(item *domain.TrackedTicket, now time.Time, scan string) (domain.ComplianceResult, bool) {
	if item.Ticket.SLAPolicyID == nil {
		item.Ticket.SLAPolicyID = &item.Policy.ID
	}
	result, err := e.Evaluate(&item.Ticket, &item.Policy, now)
	if err != nil {
		e.logger.Warn("skipping ticket in sla scan",
			zap.String("scan", scan),
			zap.String("ticket_id", item.Ticket.ID),
			zap.Error(err))
		return result, false
	}
	return result, true
}

func warningFor(item *domain.TrackedTicket, side domain.SLASide, elapsed, target, threshold float64) (domain.WarningRecord, bool) {
	pct := percentOf(elapsed, target)
	if pct < threshold {
		return domain.WarningRecord{}, false
	}
	return domain.WarningRecord{
		Ticket:         item.Ticket,
		Policy:         item.Policy,
		Side:           side,
		ElapsedHours:   elapsed,
		TargetHours:    target,
		Percentage:     pct,
		RemainingHours: math.Max(0, round2(target-elapsed)),
	}, true
}

func validateTimestamps(ticket *domain.Ticket) error {
	if ticket.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at missing", ErrMalformedTimestamp)
	}
	if ticket.FirstResponseAt != nil && (ticket.FirstResponseAt.IsZero() || ticket.FirstResponseAt.Before(ticket.CreatedAt)) {
		return fmt.Errorf("%w: first_response_at precedes created_at", ErrMalformedTimestamp)
	}
	if ticket.ResolvedAt != nil && (ticket.ResolvedAt.IsZero() || ticket.ResolvedAt.Before(ticket.CreatedAt)) {
		return fmt.Errorf("%w: resolved_at precedes created_at", ErrMalformedTimestamp)
	}
	return nil
}

func isBreached(r domain.ComplianceResult) bool {
	return isFalse(r.ResponseCompliant) || isFalse(r.ResolutionCompliant)
}

func isFalse(b *bool) bool {
	return b != nil && !*b
}

func boolPtr(v bool) *bool {
	return &v
}

func percentOf(elapsed, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return round2(elapsed / target * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
