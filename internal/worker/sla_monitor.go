package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
)

// MonitorSession is the feed session the background monitor polls under.
const MonitorSession = "system"

// Poller is the feed surface the monitor drives.
type Poller interface {
	Poll(ctx context.Context, viewer notify.Viewer) (notify.Batch, error)
	Forget(ctx context.Context, session string, n notify.Notification) error
}

// SLAMonitor periodically polls the feed and publishes an event for every
// newly breached or warned ticket.
type SLAMonitor struct {
	feed       Poller
	dispatcher events.Dispatcher
	logger     *zap.Logger
	interval   time.Duration
	now        func() time.Time
}

// NewSLAMonitor creates a monitor; an interval <= 0 disables Run.
func NewSLAMonitor(feed Poller, dispatcher events.Dispatcher, logger *zap.Logger, interval time.Duration) *SLAMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAMonitor{feed: feed, dispatcher: dispatcher, logger: logger, interval: interval, now: time.Now}
}

// Run ticks until ctx is cancelled.
func (m *SLAMonitor) Run(ctx context.Context) {
	if m.interval <= 0 {
		m.logger.Info("sla monitor disabled")
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("sla monitor started", zap.Duration("interval", m.interval))
	for {
		if _, err := m.Tick(ctx); err != nil {
			m.logger.Error("sla monitor tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one poll and publishes the resulting events. Alerts whose
// delivery fails are forgotten so a later tick retries them.
func (m *SLAMonitor) Tick(ctx context.Context) (int, error) {
	batch, err := m.feed.Poll(ctx, notify.Viewer{Session: MonitorSession, Role: domain.StaffRoleAdmin})
	if err != nil {
		return 0, err
	}
	if batch.Throttled || m.dispatcher == nil {
		return 0, nil
	}
	published := 0
	for _, n := range batch.Notifications {
		if err := m.dispatcher.Publish(ctx, m.toEvent(n)); err != nil {
			m.logger.Warn("sla alert delivery failed",
				zap.String("ticket_id", n.TicketID),
				zap.String("kind", string(n.Kind)),
				zap.Error(err))
			if err := m.feed.Forget(ctx, MonitorSession, n); err != nil {
				m.logger.Error("sla alert could not be requeued",
					zap.String("ticket_id", n.TicketID),
					zap.String("kind", string(n.Kind)),
					zap.Error(err))
			}
			continue
		}
		published++
	}
	if published > 0 {
		m.logger.Info("sla alerts published", zap.Int("count", published))
	}
	return published, nil
}

func (m *SLAMonitor) toEvent(n notify.Notification) events.Event {
	event := events.Event{
		ID:        uuid.NewString(),
		TicketID:  n.TicketID,
		Timestamp: m.now(),
	}
	switch n.Kind {
	case notify.KindBreach:
		event.Type = events.EventSLABreached
		event.Payload = events.SLABreachedPayload{
			ExternalKey: n.ExternalKey,
			PolicyName:  n.PolicyName,
			Sides:       []domain.SLASide{n.Side},
			AssigneeID:  n.AssigneeID,
		}
	default:
		event.Type = events.EventSLAWarning
		event.Payload = events.SLAWarningPayload{
			ExternalKey:    n.ExternalKey,
			PolicyName:     n.PolicyName,
			Side:           n.Side,
			Percentage:     n.Percentage,
			RemainingHours: n.RemainingHours,
			AssigneeID:     n.AssigneeID,
		}
	}
	return event
}
