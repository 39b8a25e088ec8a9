package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/events"
)

// NotificationService fans SLA events out to mail and webhook channels.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	mailer     Mailer
	webhook    WebhookSender
}

// NotificationDependencies bundles delivery channels. Nil channels are skipped.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Mailer     Mailer
	Webhook    WebhookSender
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		logger:     logger,
		mailer:     deps.Mailer,
		webhook:    deps.Webhook,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
	n.dispatcher.Subscribe(events.EventSLAWarning, n.handleSLAWarning)
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	n.logger.Info("SLABreached", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	subject, body := "SLA breached", fmt.Sprintf("Ticket %s breached its SLA.", event.TicketID)
	if p, ok := event.Payload.(events.SLABreachedPayload); ok {
		sides := make([]string, 0, len(p.Sides))
		for _, s := range p.Sides {
			sides = append(sides, string(s))
		}
		subject = fmt.Sprintf("[SLA breach] %s", p.ExternalKey)
		body = fmt.Sprintf("Ticket %s (%s) breached the %s target(s) of policy %q.",
			p.ExternalKey, event.TicketID, strings.Join(sides, " and "), p.PolicyName)
	}
	return n.deliver(ctx, event, subject, body)
}

func (n *NotificationService) handleSLAWarning(ctx context.Context, event events.Event) error {
	n.logger.Info("SLAWarning", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	subject, body := "SLA warning", fmt.Sprintf("Ticket %s is close to breaching its SLA.", event.TicketID)
	if p, ok := event.Payload.(events.SLAWarningPayload); ok {
		subject = fmt.Sprintf("[SLA warning] %s", p.ExternalKey)
		body = fmt.Sprintf("Ticket %s (%s) has used %.0f%% of its %s target under policy %q; %.2f business hours remain.",
			p.ExternalKey, event.TicketID, p.Percentage, p.Side, p.PolicyName, p.RemainingHours)
	}
	return n.deliver(ctx, event, subject, body)
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event, subject, body string) error {
	var firstErr error
	if n.mailer != nil {
		if err := n.mailer.Send(ctx, subject, body); err != nil {
			n.logger.Warn("alert email failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
			firstErr = err
		}
	}
	if n.webhook != nil {
		if err := n.webhook.Post(ctx, event); err != nil {
			n.logger.Warn("alert webhook failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
