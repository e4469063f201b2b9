package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/devdash/internal/bus"
	"github.com/starford/devdash/internal/events"
	"github.com/starford/devdash/internal/models"
)

// ingestRealtime maps a realtime envelope into a notification and prepends
// it. Unknown tags are ignored. While signed out, or when the payload names
// another user, the event is dropped.
func (e *Engine) ingestRealtime(env bus.Envelope) {
	if env.Type != events.TypeNotification {
		return
	}
	payload := toPayload(env.Data)
	if payload == nil {
		e.logger.Debug("notify: ignoring realtime payload", slog.String("type", fmt.Sprintf("%T", env.Data)))
		return
	}

	e.mu.Lock()
	if e.userID == "" {
		e.mu.Unlock()
		return
	}
	if target := stringField(payload, "user_id", ""); target != "" && target != e.userID {
		e.mu.Unlock()
		return
	}
	n, generated := e.fromPayload(payload)
	e.prependLocked(n, generated)
	e.mu.Unlock()

	e.publish()
}

func toPayload(data any) map[string]any {
	switch v := data.(type) {
	case events.NotificationPayload:
		return v
	case map[string]any:
		return v
	case models.Notification:
		p := map[string]any{
			"id":        v.ID,
			"title":     v.Title,
			"message":   v.Message,
			"type":      string(v.Type),
			"read":      v.Read,
			"timestamp": v.Timestamp,
			"link":      v.Link,
		}
		if v.Metadata != nil {
			p["metadata"] = v.Metadata
		}
		return p
	default:
		return nil
	}
}

// fromPayload fills every missing field with a default. generated reports
// whether the id was assigned locally.
func (e *Engine) fromPayload(p map[string]any) (models.Notification, bool) {
	n := models.Notification{
		ID:      stringField(p, "id", ""),
		Title:   stringField(p, "title", "Notification"),
		Message: stringField(p, "message", stringField(p, "body", "")),
		Type:    models.NotificationType(stringField(p, "type", string(models.NotificationSystem))),
		Link:    stringField(p, "link", ""),
	}
	if read, ok := p["read"].(bool); ok {
		n.Read = read
	}
	n.Timestamp = timeField(p, "timestamp", e.now())
	if md, ok := p["metadata"].(map[string]any); ok {
		n.Metadata = md
	}
	generated := false
	if n.ID == "" {
		n.ID = e.ids.notificationID()
		generated = true
	}
	return n.Clone(), generated
}

func stringField(p map[string]any, key, def string) string {
	if s, ok := p[key].(string); ok && s != "" {
		return s
	}
	return def
}

func timeField(p map[string]any, key string, def time.Time) time.Time {
	switch v := p[key].(type) {
	case time.Time:
		if !v.IsZero() {
			return v
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return def
}

// relaySystem turns selected system events into local notifications and
// rescans job matches when a job is posted.
func (e *Engine) relaySystem(env bus.Envelope) {
	switch ev := env.Data.(type) {
	case events.JobCompleted:
		e.Add(models.Notification{
			Title:    "Job completed: " + ev.Title,
			Message:  fmt.Sprintf("%s marked the job as complete.", orDefault(ev.CompletedBy, "Someone")),
			Type:     models.NotificationSystem,
			Link:     "/jobs/" + ev.JobID,
			Metadata: map[string]any{"jobId": ev.JobID, "reward": ev.Reward},
		})
	case events.AchievementUnlocked:
		e.Add(models.Notification{
			Title:    "Achievement unlocked: " + ev.Name,
			Message:  fmt.Sprintf("You earned %d XP.", ev.XP),
			Type:     models.NotificationAchievement,
			Metadata: map[string]any{"xp": ev.XP},
		})
	case events.SessionStarted:
		e.Add(models.Notification{
			Title:   "Live session started",
			Message: fmt.Sprintf("%s started a pair-programming session: %s", orDefault(ev.Host, "Someone"), ev.Topic),
			Type:    models.NotificationSession,
			Link:    "/sessions/" + ev.SessionID,
		})
	case events.JobPosted:
		e.scan(e.profiles.Profile(), []models.Job{ev.Job})
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
