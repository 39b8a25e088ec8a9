package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

func ptr[T any](v T) *T { return &v }

type fakeEngine struct {
	threshold  float64
	assignedTo string
	assignType domain.TicketType
	noPolicy   bool
	breaches   []domain.BreachRecord
	warnings   []domain.WarningRecord
}

func (f *fakeEngine) CheckCompliance(_ context.Context, id string) (*domain.ComplianceResult, error) {
	switch id {
	case "missing":
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	case "bare":
		return &domain.ComplianceResult{TicketID: id}, nil
	}
	return &domain.ComplianceResult{
		TicketID:            id,
		HasSLA:              true,
		PolicyID:            ptr("pol-1"),
		PolicyName:          "Incident High",
		ResponseHours:       0.5,
		ResponseTargetHours: 1,
		ResponseCompliant:   ptr(true),
		ResponsePercent:     50,
		ProximityScore:      50,
	}, nil
}

func (f *fakeEngine) AssignPolicy(_ context.Context, id string, ticketType domain.TicketType, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	f.assignedTo = id
	f.assignType = ticketType
	if f.noPolicy {
		return nil, nil
	}
	return &domain.SLAPolicy{ID: "pol-1", Name: "Incident High", TicketType: ticketType, Priority: priority,
		ResponseTargetMinutes: 60, ResolutionTargetMinutes: 480}, nil
}

func (f *fakeEngine) FindBreaches(context.Context) ([]domain.BreachRecord, error) {
	return f.breaches, nil
}

func (f *fakeEngine) FindWarnings(_ context.Context, threshold float64) ([]domain.WarningRecord, error) {
	f.threshold = threshold
	return f.warnings, nil
}

type fakeFeed struct {
	viewer notify.Viewer
}

func (f *fakeFeed) Poll(_ context.Context, viewer notify.Viewer) (notify.Batch, error) {
	f.viewer = viewer
	return notify.Batch{ScannedAt: time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC), Notifications: []notify.Notification{
		{Kind: notify.KindBreach, TicketID: "t-1", ExternalKey: "HD-1", Side: domain.SLASideResponse, Message: "HD-1 breached its response target"},
	}}, nil
}

type staffTable map[string]*domain.StaffMember

func (s staffTable) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	if m, ok := s[id]; ok {
		return m, nil
	}
	return nil, pgx.ErrNoRows
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type harness struct {
	app     *fiber.App
	engine  *fakeEngine
	feed    *fakeFeed
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		engine: &fakeEngine{
			breaches: []domain.BreachRecord{
				{Ticket: domain.Ticket{ID: "t-1", AssigneeID: ptr("agent-1")}, Policy: domain.SLAPolicy{Name: "A"},
					Result: domain.ComplianceResult{ResponsePercent: 120}, ResponseBreached: true},
				{Ticket: domain.Ticket{ID: "t-2", AssigneeID: ptr("agent-2")}, Policy: domain.SLAPolicy{Name: "B"},
					Result: domain.ComplianceResult{ResolutionPercent: 400}, ResolutionBreached: true},
			},
			warnings: []domain.WarningRecord{
				{Ticket: domain.Ticket{ID: "t-3", AssigneeID: ptr("agent-1")}, Side: domain.SLASideResponse, Percentage: 80},
				{Ticket: domain.Ticket{ID: "t-4"}, Side: domain.SLASideResolution, Percentage: 95},
			},
		},
		feed:    &fakeFeed{},
		tokens:  auth.NewTokenManager("test-secret", 5),
		metrics: observability.NewMetrics(),
	}
	staff := staffTable{
		"agent-1": {ID: "agent-1", Role: domain.StaffRoleAgent, Active: true},
		"lead-1":  {ID: "lead-1", Role: domain.StaffRoleTeamLead, Active: true},
	}
	h.app = fiber.New()
	RegisterMiddlewares(h.app, zap.NewNop(), h.metrics, time.Second)
	RegisterRoutes(h.app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-sla", "test", map[string]handlers.Pinger{"postgres": okPinger{}}, nil),
		SLA:            handlers.NewSLAHandler(h.engine, h.feed, 0),
		Metrics:        handlers.NewMetricsHandler(h.metrics),
		AuthMiddleware: auth.NewAuthMiddleware(h.tokens, staff),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, staffID, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if staffID != "" {
		token, _, err := h.tokens.GenerateStaffToken(staffID, domain.StaffRoleAgent)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func ids(t *testing.T, body map[string]any) []string {
	t.Helper()
	rows, ok := body["data"].([]any)
	require.True(t, ok)
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		ticket := row.(map[string]any)["ticket"].(map[string]any)
		out = append(out, ticket["id"].(string))
	}
	return out
}

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, nethttp.MethodGet, "/health/live", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = h.do(t, nethttp.MethodGet, "/health/ready", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestComplianceRequiresToken(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, nethttp.MethodGet, "/staff/sla/tickets/t-1", "", "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])
}

func TestGetCompliance(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, nethttp.MethodGet, "/staff/sla/tickets/t-1", "agent-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["has_sla"])
	assert.Equal(t, true, data["response_compliant"])
	assert.Equal(t, 50.0, data["proximity_score"])

	status, body = h.do(t, nethttp.MethodGet, "/staff/sla/tickets/bare", "agent-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, false, data["has_sla"])
	assert.Nil(t, data["response_compliant"])
	assert.Nil(t, data["resolution_compliant"])
	assert.NotContains(t, data, "proximity_score")

	status, body = h.do(t, nethttp.MethodGet, "/staff/sla/tickets/missing", "agent-1", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestAssignPolicy(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, nethttp.MethodPut, "/staff/sla/tickets/t-9/policy", "agent-1", `{"type":"INCIDENT","priority":"HIGH"}`)
	assert.Equal(t, nethttp.StatusForbidden, status)

	status, body := h.do(t, nethttp.MethodPut, "/staff/sla/tickets/t-9/policy", "lead-1", `{"type":"INCIDENT","priority":"HIGH"}`)
	require.Equal(t, nethttp.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["assigned"])
	assert.Equal(t, "pol-1", data["policy"].(map[string]any)["id"])
	assert.Equal(t, "t-9", h.engine.assignedTo)
	assert.Equal(t, domain.TicketTypeIncident, h.engine.assignType)

	h.engine.noPolicy = true
	status, body = h.do(t, nethttp.MethodPut, "/staff/sla/tickets/t-9/policy", "lead-1", `{"type":"QUESTION","priority":"LOW"}`)
	require.Equal(t, nethttp.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, false, data["assigned"])
	assert.Nil(t, data["policy"])
}

func TestAssignPolicyValidation(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, nethttp.MethodPut, "/staff/sla/tickets/t-9/policy", "lead-1", `{"type":"BUG","priority":""}`)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Contains(t, details, "type")
	assert.Contains(t, details, "priority")
	assert.Empty(t, h.engine.assignedTo)
}

func TestBreachesScopedByRole(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, nethttp.MethodGet, "/staff/sla/breaches", "agent-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, []string{"t-1"}, ids(t, body))

	status, body = h.do(t, nethttp.MethodGet, "/staff/sla/breaches?sort=risk", "lead-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, []string{"t-2", "t-1"}, ids(t, body))

	status, _ = h.do(t, nethttp.MethodGet, "/staff/sla/breaches?sort=loudest", "lead-1", "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestWarnings(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, nethttp.MethodGet, "/staff/sla/warnings", "lead-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, 75.0, h.engine.threshold)
	assert.Equal(t, []string{"t-3", "t-4"}, ids(t, body))

	status, body = h.do(t, nethttp.MethodGet, "/staff/sla/warnings?threshold=90&sort=risk", "lead-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, 90.0, h.engine.threshold)
	assert.Equal(t, []string{"t-4", "t-3"}, ids(t, body))

	status, body = h.do(t, nethttp.MethodGet, "/staff/sla/warnings", "agent-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, []string{"t-3"}, ids(t, body))

	status, _ = h.do(t, nethttp.MethodGet, "/staff/sla/warnings?threshold=150", "lead-1", "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestNotifications(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, nethttp.MethodGet, "/staff/sla/notifications", "agent-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["throttled"])
	assert.Len(t, data["notifications"], 1)
	assert.Equal(t, "staff:agent-1", h.feed.viewer.Session)
	assert.Equal(t, domain.StaffRoleAgent, h.feed.viewer.Role)
}

func TestMetricsRecordRequests(t *testing.T) {
	h := newHarness(t)

	h.do(t, nethttp.MethodGet, "/staff/sla/tickets/missing", "agent-1", "")
	status, body := h.do(t, nethttp.MethodGet, "/internal/metrics", "", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.NotEmpty(t, body)

	var notFound int64
	for key, count := range h.metrics.Snapshot().Errors {
		if strings.HasSuffix(key, "|GET|NOT_FOUND") {
			notFound += count
		}
	}
	assert.Equal(t, int64(1), notFound)
}
