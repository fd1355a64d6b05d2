package worker

import (
	"github.com/spec-kit/gap-pos/internal/events"
	"github.com/spec-kit/gap-pos/internal/service"
)

// StartNotificationWorker registers notification handlers to run on runner.
func StartNotificationWorker(runner *Runner, notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	var wrap func(string, events.EventHandler) events.EventHandler
	if runner != nil {
		wrap = runner.Async
	}
	notificationService.RegisterHandlers(wrap)
}
