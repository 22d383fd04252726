package worker

import (
	"github.com/spec-kit/triage-service/internal/service"
)

// StartActivityWorker registers the audit-trail event handlers.
func StartActivityWorker(activityService *service.ActivityService) {
	if activityService == nil {
		return
	}
	activityService.RegisterHandlers()
}
