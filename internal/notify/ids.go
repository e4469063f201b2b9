package notify

import (
	"fmt"
	"sync"
	"time"
)

// idClock hands out strictly increasing millisecond stamps so that ids
// generated within the same millisecond never collide.
type idClock struct {
	now func() time.Time

	mu   sync.Mutex
	last int64
}

func (c *idClock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

func (c *idClock) notificationID() string {
	return fmt.Sprintf("notif-%d", c.next())
}

func (c *idClock) jobMatchID(jobID string) string {
	return fmt.Sprintf("job-match-%s-%d", jobID, c.next())
}
