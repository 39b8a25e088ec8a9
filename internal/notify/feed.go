package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
)

// Kind distinguishes breach alerts from warnings.
type Kind string

const (
	KindBreach  Kind = "breach"
	KindWarning Kind = "warning"
)

// Scanner is the slice of the SLA engine the feed polls.
type Scanner interface {
	FindBreaches(ctx context.Context) ([]domain.BreachRecord, error)
	FindWarnings(ctx context.Context, thresholdPercent float64) ([]domain.WarningRecord, error)
}

// Viewer identifies who is polling. Agents only receive alerts for tickets
// assigned to them.
type Viewer struct {
	Session string
	StaffID string
	Role    domain.StaffRole
}

// Notification is one alert delivered to a session.
type Notification struct {
	Kind           Kind
	TicketID       string
	ExternalKey    string
	Title          string
	PolicyName     string
	Side           domain.SLASide
	Percentage     float64
	RemainingHours float64
	AssigneeID     *string
	Message        string
}

// Key identifies the alert within a session's seen-set.
func (n Notification) Key() string {
	return fmt.Sprintf("%s:%s:%s", n.Kind, n.TicketID, n.Side)
}

// Batch is the outcome of one poll. Throttled means the session is still in
// its cooldown and nothing was scanned.
type Batch struct {
	Notifications []Notification
	Throttled     bool
	ScannedAt     time.Time
}

// Feed turns engine scans into de-duplicated, role-scoped alerts.
type Feed struct {
	scanner   Scanner
	seen      SeenStore
	logger    *zap.Logger
	metrics   *observability.Metrics
	cooldown  time.Duration
	seenTTL   time.Duration
	threshold float64
	now       func() time.Time
}

// FeedDependencies bundles feed collaborators and tuning.
type FeedDependencies struct {
	Scanner          Scanner
	Seen             SeenStore
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Cooldown         time.Duration
	SeenTTL          time.Duration
	WarningThreshold float64
	Now              func() time.Time
}

// NewFeed constructs a feed.
func NewFeed(deps FeedDependencies) *Feed {
	f := &Feed{
		scanner:   deps.Scanner,
		seen:      deps.Seen,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		cooldown:  deps.Cooldown,
		seenTTL:   deps.SeenTTL,
		threshold: deps.WarningThreshold,
		now:       deps.Now,
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.seen == nil {
		f.seen = NewMemorySeenStore(f.now)
	}
	if f.threshold <= 0 {
		f.threshold = sla.DefaultWarningThreshold
	}
	return f
}

// Poll scans for alerts the viewer has not seen yet. Seen-store failures
// are logged and the alert is delivered anyway.
func (f *Feed) Poll(ctx context.Context, viewer Viewer) (Batch, error) {
	session := viewer.Session
	if session == "" {
		session = viewer.StaffID
	}

	allowed, err := f.seen.AcquireScan(ctx, session, f.cooldown)
	if err != nil {
		f.logger.Warn("feed cooldown check failed", zap.String("session", session), zap.Error(err))
		allowed = true
	}
	if !allowed {
		return Batch{Throttled: true}, nil
	}

	breaches, err := f.scanner.FindBreaches(ctx)
	if err != nil {
		return Batch{}, err
	}
	f.metrics.RecordScan(string(KindBreach), len(breaches))

	warnings, err := f.scanner.FindWarnings(ctx, f.threshold)
	if err != nil {
		return Batch{}, err
	}
	f.metrics.RecordScan(string(KindWarning), len(warnings))

	candidates := make([]Notification, 0, len(breaches)+len(warnings))
	for _, b := range breaches {
		if !viewer.CanSee(b.Ticket) {
			continue
		}
		for _, side := range b.Sides() {
			candidates = append(candidates, breachNotification(b, side))
		}
	}
	for _, w := range warnings {
		if !viewer.CanSee(w.Ticket) {
			continue
		}
		candidates = append(candidates, warningNotification(w))
	}

	batch := Batch{ScannedAt: f.now(), Notifications: make([]Notification, 0, len(candidates))}
	for _, n := range candidates {
		fresh, err := f.seen.MarkSeen(ctx, session, n.Key(), f.seenTTL)
		if err != nil {
			f.logger.Warn("feed seen-set update failed",
				zap.String("session", session),
				zap.String("ticket_id", n.TicketID),
				zap.Error(err))
			fresh = true
		}
		if !fresh {
			continue
		}
		f.metrics.RecordNotification(string(n.Kind))
		batch.Notifications = append(batch.Notifications, n)
	}
	return batch, nil
}

// Forget returns n to the session's unseen set, for callers whose delivery
// failed after Poll handed it out.
func (f *Feed) Forget(ctx context.Context, session string, n Notification) error {
	return f.seen.Forget(ctx, session, n.Key())
}

// CanSee reports whether the ticket falls inside the viewer's scope.
func (v Viewer) CanSee(ticket domain.Ticket) bool {
	if v.Role.SeesAllTickets() {
		return true
	}
	return ticket.AssigneeID != nil && *ticket.AssigneeID == v.StaffID
}

func breachNotification(b domain.BreachRecord, side domain.SLASide) Notification {
	n := Notification{
		Kind:        KindBreach,
		TicketID:    b.Ticket.ID,
		ExternalKey: b.Ticket.ExternalKey,
		Title:       b.Ticket.Title,
		PolicyName:  b.Policy.Name,
		Side:        side,
		AssigneeID:  b.Ticket.AssigneeID,
	}
	if side == domain.SLASideResponse {
		n.Percentage = b.Result.ResponsePercent
	} else {
		n.Percentage = b.Result.ResolutionPercent
	}
	n.Message = fmt.Sprintf("%s breached its %s target", displayKey(b.Ticket), side)
	return n
}

func warningNotification(w domain.WarningRecord) Notification {
	return Notification{
		Kind:           KindWarning,
		TicketID:       w.Ticket.ID,
		ExternalKey:    w.Ticket.ExternalKey,
		Title:          w.Ticket.Title,
		PolicyName:     w.Policy.Name,
		Side:           w.Side,
		Percentage:     w.Percentage,
		RemainingHours: w.RemainingHours,
		AssigneeID:     w.Ticket.AssigneeID,
		Message: fmt.Sprintf("%s has %.2f business hours left on its %s target",
			displayKey(w.Ticket), w.RemainingHours, w.Side),
	}
}

func displayKey(t domain.Ticket) string {
	if t.ExternalKey != "" {
		return t.ExternalKey
	}
	return t.ID
}
