package worker

import (
	"context"

	"github.com/spec-kit/helpdesk-sla/internal/service"
)

// StartNotificationWorker registers notification handlers and launches the
// SLA monitor in the background.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, monitor *SLAMonitor) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if monitor != nil {
		go monitor.Run(ctx)
	}
}
