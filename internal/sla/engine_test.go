package sla

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

type memoryTickets struct {
	tickets  map[string]*domain.Ticket
	policies map[string]*domain.SLAPolicy
	listErr  error
	writes   int
	// stale lists final tickets too, as a lagging replica might.
	stale bool
}

func newMemoryTickets(policies ...domain.SLAPolicy) *memoryTickets {
	m := &memoryTickets{
		tickets:  map[string]*domain.Ticket{},
		policies: map[string]*domain.SLAPolicy{},
	}
	for i := range policies {
		p := policies[i]
		m.policies[p.ID] = &p
	}
	return m
}

func (m *memoryTickets) add(t domain.Ticket) {
	m.tickets[t.ID] = &t
}

func (m *memoryTickets) GetForSLA(_ context.Context, id string) (*domain.Ticket, *domain.SLAPolicy, error) {
	t, ok := m.tickets[id]
	if !ok {
		return nil, nil, pgx.ErrNoRows
	}
	copied := *t
	if t.SLAPolicyID == nil {
		return &copied, nil, nil
	}
	return &copied, m.policies[*t.SLAPolicyID], nil
}

func (m *memoryTickets) ListOpenWithPolicy(_ context.Context) ([]domain.TrackedTicket, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.TrackedTicket
	for _, t := range m.tickets {
		if t.SLAPolicyID == nil || (t.Status.IsFinal() && !m.stale) {
			continue
		}
		out = append(out, domain.TrackedTicket{Ticket: *t, Policy: *m.policies[*t.SLAPolicyID]})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Ticket.CreatedAt.Before(out[j].Ticket.CreatedAt)
	})
	return out, nil
}

func (m *memoryTickets) SetSLAPolicy(_ context.Context, ticketID, policyID string) error {
	t, ok := m.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	m.writes++
	t.SLAPolicyID = &policyID
	return nil
}

type memoryPolicies struct {
	byKey    map[string]domain.SLAPolicy
	upserted []domain.SLAPolicy
	err      error
}

func (m *memoryPolicies) FindActive(_ context.Context, tt domain.TicketType, p domain.TicketPriority) (*domain.SLAPolicy, error) {
	if m.err != nil {
		return nil, m.err
	}
	policy, ok := m.byKey[string(tt)+"/"+string(p)]
	if !ok || !policy.Active {
		return nil, pgx.ErrNoRows
	}
	return &policy, nil
}

func (m *memoryPolicies) Upsert(_ context.Context, policy *domain.SLAPolicy) error {
	policy.ID = "pol-" + string(policy.TicketType) + "-" + string(policy.Priority)
	m.upserted = append(m.upserted, *policy)
	return nil
}

var incidentHigh = domain.SLAPolicy{
	ID:                      "pol-1",
	Name:                    "Incident High",
	TicketType:              domain.TicketTypeIncident,
	Priority:                domain.TicketPriorityHigh,
	ResponseTargetMinutes:   60,
	ResolutionTargetMinutes: 240,
	Active:                  true,
}

func ptr[T any](v T) *T { return &v }

func newTestEngine(t *testing.T, tickets *memoryTickets, policies *memoryPolicies, now time.Time) *Engine {
	t.Helper()
	if policies == nil {
		policies = &memoryPolicies{byKey: map[string]domain.SLAPolicy{}}
	}
	return NewEngine(Dependencies{
		Tickets:  tickets,
		Policies: policies,
		Calendar: standardCalendar(t),
		Now:      func() time.Time { return now },
	})
}

func openTicket(id string, created time.Time) domain.Ticket {
	return domain.Ticket{
		ID:          id,
		Type:        domain.TicketTypeIncident,
		Priority:    domain.TicketPriorityHigh,
		Status:      domain.TicketStatusOpen,
		SLAPolicyID: ptr(incidentHigh.ID),
		CreatedAt:   created,
	}
}

func TestCheckCompliance_RespondedWithinTarget(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	ticket := openTicket("t-1", at(12, 9, 0))
	ticket.FirstResponseAt = ptr(at(12, 9, 45))
	store.add(ticket)
	engine := newTestEngine(t, store, nil, at(12, 11, 0))

	result, err := engine.CheckCompliance(context.Background(), "t-1")
	require.NoError(t, err)

	assert.True(t, result.HasSLA)
	assert.InDelta(t, 0.75, result.ResponseHours, 0.001)
	require.NotNil(t, result.ResponseCompliant)
	assert.True(t, *result.ResponseCompliant)
	assert.InDelta(t, 2.0, result.ResolutionHours, 0.001)
	require.NotNil(t, result.ResolutionCompliant)
	assert.True(t, *result.ResolutionCompliant)
	assert.Equal(t, 50.0, result.ResolutionPercent)
}

func TestCheckCompliance_NoResponseYetBreaches(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	store.add(openTicket("t-1", at(12, 9, 0)))
	engine := newTestEngine(t, store, nil, at(12, 10, 30))

	result, err := engine.CheckCompliance(context.Background(), "t-1")
	require.NoError(t, err)

	assert.InDelta(t, 1.5, result.ResponseHours, 0.001)
	require.NotNil(t, result.ResponseCompliant)
	assert.False(t, *result.ResponseCompliant)

	breaches, err := engine.FindBreaches(context.Background())
	require.NoError(t, err)
	require.Len(t, breaches, 1)
	assert.Equal(t, "t-1", breaches[0].Ticket.ID)
	assert.True(t, breaches[0].ResponseBreached)
	assert.False(t, breaches[0].ResolutionBreached)
	assert.Equal(t, []domain.SLASide{domain.SLASideResponse}, breaches[0].Sides())
}

func TestCheckCompliance_FlipsWithWallClock(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	store.add(openTicket("t-1", at(12, 9, 0)))
	now := at(12, 9, 30)
	engine := NewEngine(Dependencies{
		Tickets:  store,
		Policies: &memoryPolicies{},
		Calendar: standardCalendar(t),
		Now:      func() time.Time { return now },
	})

	first, err := engine.CheckCompliance(context.Background(), "t-1")
	require.NoError(t, err)
	assert.True(t, *first.ResponseCompliant)

	now = at(12, 10, 1)
	second, err := engine.CheckCompliance(context.Background(), "t-1")
	require.NoError(t, err)
	assert.False(t, *second.ResponseCompliant)
}

func TestCheckCompliance_WithoutPolicy(t *testing.T) {
	store := newMemoryTickets()
	ticket := openTicket("t-1", at(12, 9, 0))
	ticket.SLAPolicyID = nil
	store.add(ticket)
	engine := newTestEngine(t, store, nil, at(12, 15, 0))

	result, err := engine.CheckCompliance(context.Background(), "t-1")
	require.NoError(t, err)
	assert.False(t, result.HasSLA)
	assert.Nil(t, result.ResponseCompliant)
	assert.Nil(t, result.ResolutionCompliant)
}

func TestCheckCompliance_UnknownTicket(t *testing.T) {
	engine := newTestEngine(t, newMemoryTickets(), nil, at(12, 9, 0))

	_, err := engine.CheckCompliance(context.Background(), "missing")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestCheckCompliance_MalformedTimestampFailsLoudly(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	ticket := openTicket("t-1", time.Time{})
	store.add(ticket)
	engine := newTestEngine(t, store, nil, at(12, 9, 0))

	_, err := engine.CheckCompliance(context.Background(), "t-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "MALFORMED_TIMESTAMP", domainErr.Code)
}

func TestFindBreaches_SkipsFinalStatusesAndBadRows(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	late := openTicket("late", at(12, 9, 0))
	store.add(late)

	resolved := openTicket("resolved", at(12, 9, 0))
	resolved.Status = domain.TicketStatusResolved
	store.add(resolved)

	closed := openTicket("closed", at(12, 9, 0))
	closed.Status = domain.TicketStatusClosed
	store.add(closed)

	broken := openTicket("broken", at(12, 9, 30))
	broken.FirstResponseAt = ptr(at(12, 8, 0))
	store.add(broken)

	onTime := openTicket("on-time", at(13, 9, 0))
	store.add(onTime)
	store.stale = true

	engine := newTestEngine(t, store, nil, at(13, 9, 30))

	breaches, err := engine.FindBreaches(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(breaches))
	for _, b := range breaches {
		ids = append(ids, b.Ticket.ID)
	}
	assert.Equal(t, []string{"late"}, ids)
	assert.True(t, breaches[0].ResponseBreached)
	assert.True(t, breaches[0].ResolutionBreached)
}

func TestFindBreaches_CreationOrder(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	store.add(openTicket("b", at(12, 10, 0)))
	store.add(openTicket("a", at(12, 9, 0)))
	store.add(openTicket("c", at(12, 11, 0)))
	engine := newTestEngine(t, store, nil, at(14, 9, 0))

	breaches, err := engine.FindBreaches(context.Background())
	require.NoError(t, err)
	require.Len(t, breaches, 3)
	assert.Equal(t, "a", breaches[0].Ticket.ID)
	assert.Equal(t, "b", breaches[1].Ticket.ID)
	assert.Equal(t, "c", breaches[2].Ticket.ID)
}

func TestFindBreaches_PropagatesStoreError(t *testing.T) {
	store := newMemoryTickets()
	store.listErr = errors.New("connection reset")
	engine := newTestEngine(t, store, nil, at(12, 9, 0))

	_, err := engine.FindBreaches(context.Background())
	require.Error(t, err)
	_, err = engine.FindWarnings(context.Background(), 0)
	require.Error(t, err)
}

func TestFindWarnings_ThresholdAndRemaining(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	// 48 minutes of a 60 minute response target: 80%.
	store.add(openTicket("near", at(12, 9, 0)))
	// 30 minutes: 50%, below threshold.
	store.add(openTicket("fresh", at(12, 9, 18)))
	engine := newTestEngine(t, store, nil, at(12, 9, 48))

	warnings, err := engine.FindWarnings(context.Background(), 75)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	w := warnings[0]
	assert.Equal(t, "near", w.Ticket.ID)
	assert.Equal(t, domain.SLASideResponse, w.Side)
	assert.InDelta(t, 80.0, w.Percentage, 0.001)
	assert.InDelta(t, 0.2, w.RemainingHours, 0.001)
	assert.InDelta(t, 1.0, w.TargetHours, 0.001)
}

func TestFindWarnings_DefaultThreshold(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	store.add(openTicket("near", at(12, 9, 0)))
	engine := newTestEngine(t, store, nil, at(12, 9, 45))

	warnings, err := engine.FindWarnings(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, 75.0, warnings[0].Percentage)
}

func TestFindWarnings_SkipsFinalStatuses(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	store.add(openTicket("near", at(12, 9, 0)))
	closed := openTicket("closed", at(12, 9, 0))
	closed.Status = domain.TicketStatusClosed
	store.add(closed)
	store.stale = true
	engine := newTestEngine(t, store, nil, at(12, 9, 48))

	warnings, err := engine.FindWarnings(context.Background(), 75)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "near", warnings[0].Ticket.ID)
}

func TestOpenCompliance_CreationOrderThenRisk(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	answered := openTicket("answered", at(12, 9, 0))
	answered.FirstResponseAt = ptr(at(12, 9, 10))
	store.add(answered)
	store.add(openTicket("hot", at(12, 9, 5)))
	closed := openTicket("closed", at(12, 8, 0))
	closed.Status = domain.TicketStatusClosed
	store.add(closed)
	store.stale = true
	engine := newTestEngine(t, store, nil, at(12, 9, 50))

	results, err := engine.OpenCompliance(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "answered", results[0].TicketID)
	assert.Equal(t, "hot", results[1].TicketID)

	SortByRisk(results)
	assert.Equal(t, "hot", results[0].TicketID)
	assert.Equal(t, 25.0, results[0].ProximityScore)
}

func TestOpenCompliance_ListError(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	store.listErr = errors.New("db gone")
	_, err := newTestEngine(t, store, nil, at(12, 9, 0)).OpenCompliance(context.Background())
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "INTERNAL_ERROR", de.Code)
}

func TestFindWarnings_BothSidesIndependently(t *testing.T) {
	policy := incidentHigh
	policy.ResponseTargetMinutes = 240
	policy.ResolutionTargetMinutes = 250
	store := newMemoryTickets(policy)
	store.add(openTicket("both", at(12, 9, 0)))
	engine := newTestEngine(t, store, nil, at(12, 12, 30))

	warnings, err := engine.FindWarnings(context.Background(), 75)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Equal(t, domain.SLASideResponse, warnings[0].Side)
	assert.Equal(t, domain.SLASideResolution, warnings[1].Side)
}

func TestFindWarnings_OnlyPendingSides(t *testing.T) {
	policy := incidentHigh
	policy.ResponseTargetMinutes = 240
	policy.ResolutionTargetMinutes = 250
	store := newMemoryTickets(policy)
	ticket := openTicket("answered", at(12, 9, 0))
	ticket.FirstResponseAt = ptr(at(12, 12, 0))
	store.add(ticket)
	engine := newTestEngine(t, store, nil, at(12, 12, 30))

	warnings, err := engine.FindWarnings(context.Background(), 75)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.SLASideResolution, warnings[0].Side)
}

func TestFindWarnings_NeverIncludesBreached(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	store.add(openTicket("breached", at(12, 9, 0)))
	store.add(openTicket("warned", at(12, 9, 35)))
	engine := newTestEngine(t, store, nil, at(12, 10, 25))

	breaches, err := engine.FindBreaches(context.Background())
	require.NoError(t, err)
	warnings, err := engine.FindWarnings(context.Background(), 75)
	require.NoError(t, err)

	breached := map[string]bool{}
	for _, b := range breaches {
		breached[b.Ticket.ID] = true
	}
	require.True(t, breached["breached"])
	require.NotEmpty(t, warnings)
	for _, w := range warnings {
		assert.False(t, breached[w.Ticket.ID], "ticket %s is both breached and warned", w.Ticket.ID)
	}
}

func TestAssignPolicy(t *testing.T) {
	store := newMemoryTickets(incidentHigh)
	ticket := openTicket("t-1", at(12, 9, 0))
	ticket.SLAPolicyID = nil
	store.add(ticket)
	policies := &memoryPolicies{byKey: map[string]domain.SLAPolicy{"INCIDENT/HIGH": incidentHigh}}
	engine := newTestEngine(t, store, policies, at(12, 9, 0))

	policy, err := engine.AssignPolicy(context.Background(), "t-1", domain.TicketTypeIncident, domain.TicketPriorityHigh)
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, incidentHigh.ID, policy.ID)
	assert.Equal(t, incidentHigh.ID, *store.tickets["t-1"].SLAPolicyID)

	again, err := engine.AssignPolicy(context.Background(), "t-1", domain.TicketTypeIncident, domain.TicketPriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, policy.ID, again.ID)
	assert.Equal(t, 2, store.writes)
}

func TestAssignPolicy_NoMatchLeavesTicketUntouched(t *testing.T) {
	store := newMemoryTickets()
	ticket := openTicket("t-1", at(12, 9, 0))
	ticket.SLAPolicyID = nil
	store.add(ticket)
	engine := newTestEngine(t, store, nil, at(12, 9, 0))

	policy, err := engine.AssignPolicy(context.Background(), "t-1", domain.TicketTypeQuestion, domain.TicketPriorityLow)
	require.NoError(t, err)
	assert.Nil(t, policy)
	assert.Nil(t, store.tickets["t-1"].SLAPolicyID)
	assert.Zero(t, store.writes)
}

func TestAssignPolicy_UnknownTicket(t *testing.T) {
	policies := &memoryPolicies{byKey: map[string]domain.SLAPolicy{"INCIDENT/HIGH": incidentHigh}}
	engine := newTestEngine(t, newMemoryTickets(), policies, at(12, 9, 0))

	_, err := engine.AssignPolicy(context.Background(), "ghost", domain.TicketTypeIncident, domain.TicketPriorityHigh)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestAssignPolicy_RequiresTypeAndPriority(t *testing.T) {
	engine := newTestEngine(t, newMemoryTickets(), nil, at(12, 9, 0))

	_, err := engine.AssignPolicy(context.Background(), "t-1", "", domain.TicketPriorityHigh)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}
