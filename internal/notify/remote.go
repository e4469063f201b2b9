package notify

import (
	"context"

	"github.com/starford/devdash/internal/models"
)

// RemoteAPI is the authoritative notification service. These calls are the
// only operations of the engine that may block for an unbounded time.
type RemoteAPI interface {
	List(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// JobSource supplies the jobs catalog to the matcher.
type JobSource interface {
	Jobs() []models.Job
}

// StaticJobs is a fixed JobSource.
type StaticJobs []models.Job

func (s StaticJobs) Jobs() []models.Job {
	out := make([]models.Job, len(s))
	copy(out, s)
	return out
}
