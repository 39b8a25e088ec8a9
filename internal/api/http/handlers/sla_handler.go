package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// SLAEngine is the engine surface exposed over HTTP.
type SLAEngine interface {
	CheckCompliance(ctx context.Context, ticketID string) (*domain.ComplianceResult, error)
	AssignPolicy(ctx context.Context, ticketID string, ticketType domain.TicketType, priority domain.TicketPriority) (*domain.SLAPolicy, error)
	FindBreaches(ctx context.Context) ([]domain.BreachRecord, error)
	FindWarnings(ctx context.Context, thresholdPercent float64) ([]domain.WarningRecord, error)
}

// FeedPoller delivers per-session notifications.
type FeedPoller interface {
	Poll(ctx context.Context, viewer notify.Viewer) (notify.Batch, error)
}

// SLAHandler serves the /staff/sla endpoints.
type SLAHandler struct {
	engine    SLAEngine
	feed      FeedPoller
	threshold float64
}

// NewSLAHandler constructs handler. threshold is the default warning
// percentage when the request does not pass one.
func NewSLAHandler(engine SLAEngine, feed FeedPoller, threshold float64) *SLAHandler {
	if threshold <= 0 {
		threshold = sla.DefaultWarningThreshold
	}
	return &SLAHandler{engine: engine, feed: feed, threshold: threshold}
}

// GetCompliance GET /staff/sla/tickets/:id.
func (h *SLAHandler) GetCompliance(c *fiber.Ctx) error {
	result, err := h.engine.CheckCompliance(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewComplianceResponse(*result)})
}

// AssignPolicy PUT /staff/sla/tickets/:id/policy.
func (h *SLAHandler) AssignPolicy(c *fiber.Ctx) error {
	var req dto.AssignPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := apperrors.ValidateStruct(req); err != nil {
		return err
	}
	ticketID := c.Params("id")
	policy, err := h.engine.AssignPolicy(c.UserContext(), ticketID, req.Type, req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AssignPolicyResponse{
		TicketID: ticketID,
		Assigned: policy != nil,
		Policy:   dto.NewPolicyResponse(policy),
	}})
}

// ListBreaches GET /staff/sla/breaches.
func (h *SLAHandler) ListBreaches(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	sortBy := c.Query("sort")
	if sortBy != "" && sortBy != "risk" && sortBy != "created" {
		return apperrors.NewValidationError("sort must be one of [risk created]", map[string]any{"sort": sortBy})
	}
	breaches, err := h.engine.FindBreaches(c.UserContext())
	if err != nil {
		return err
	}
	visible := make([]domain.BreachRecord, 0, len(breaches))
	for _, b := range breaches {
		if viewer.CanSee(b.Ticket) {
			visible = append(visible, b)
		}
	}
	if sortBy == "risk" {
		sla.SortBreachesByRisk(visible)
	}
	items := make([]dto.BreachResponse, 0, len(visible))
	for _, b := range visible {
		items = append(items, dto.NewBreachResponse(b))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListWarnings GET /staff/sla/warnings.
func (h *SLAHandler) ListWarnings(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	var query dto.WarningsQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", map[string]any{"query": err.Error()})
	}
	if err := apperrors.ValidateStruct(query); err != nil {
		return err
	}
	threshold := query.Threshold
	if threshold == 0 {
		threshold = h.threshold
	}
	warnings, err := h.engine.FindWarnings(c.UserContext(), threshold)
	if err != nil {
		return err
	}
	visible := make([]domain.WarningRecord, 0, len(warnings))
	for _, w := range warnings {
		if viewer.CanSee(w.Ticket) {
			visible = append(visible, w)
		}
	}
	if query.Sort == "risk" {
		sla.SortWarningsByRisk(visible)
	}
	items := make([]dto.WarningResponse, 0, len(visible))
	for _, w := range visible {
		items = append(items, dto.NewWarningResponse(w))
	}
	return c.JSON(fiber.Map{"data": items, "threshold": threshold})
}

// Notifications GET /staff/sla/notifications.
func (h *SLAHandler) Notifications(c *fiber.Ctx) error {
	viewer, err := viewerFrom(c)
	if err != nil {
		return err
	}
	batch, err := h.feed.Poll(c.UserContext(), viewer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFeedResponse(batch)})
}

func viewerFrom(c *fiber.Ctx) (notify.Viewer, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return notify.Viewer{}, fiber.NewError(http.StatusUnauthorized, "staff required")
	}
	return notify.Viewer{
		Session: "staff:" + principal.Staff.ID,
		StaffID: principal.Staff.ID,
		Role:    principal.Role(),
	}, nil
}
