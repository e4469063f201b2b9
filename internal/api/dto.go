package api

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/notify"
)

var notificationTypes = []any{
	models.NotificationSystem,
	models.NotificationJobMatch,
	models.NotificationCommunity,
	models.NotificationMessage,
	models.NotificationSession,
	models.NotificationAchievement,
}

// CreateNotificationRequest is the body of POST /me/notifications.
type CreateNotificationRequest struct {
	Title    string                  `json:"title" example:"Welcome" validate:"required"`
	Message  string                  `json:"message" example:"Your dashboard is ready."`
	Type     models.NotificationType `json:"type,omitempty" example:"system"`
	Link     string                  `json:"link,omitempty" example:"/settings"`
	Metadata map[string]any          `json:"metadata,omitempty"`
}

func (r CreateNotificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Type, validation.In(notificationTypes...)),
	)
}

func (r CreateNotificationRequest) notification() models.Notification {
	return models.Notification{
		Title:    r.Title,
		Message:  r.Message,
		Type:     r.Type,
		Link:     r.Link,
		Metadata: r.Metadata,
	}
}

// InboxCreateRequest is the body of POST /notifications.
type InboxCreateRequest struct {
	UserID string `json:"user_id" example:"u-42" validate:"required"`
	CreateNotificationRequest
}

func (r InboxCreateRequest) Validate() error {
	if err := validation.ValidateStruct(&r, validation.Field(&r.UserID, validation.Required)); err != nil {
		return err
	}
	return r.CreateNotificationRequest.Validate()
}

// UserRequest carries a user id, as in POST /notifications/read-all.
type UserRequest struct {
	UserID string `json:"user_id" example:"u-42" validate:"required"`
}

func (r UserRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.UserID, validation.Required))
}

// SessionRequest is the body of POST /me/session. An empty user id signs out.
type SessionRequest struct {
	UserID string `json:"user_id" example:"u-42"`
}

// ImproveSkillRequest is the body of POST /me/profile/skills/{name}/improve.
type ImproveSkillRequest struct {
	Points int `json:"points" example:"5" validate:"required"`
}

func (r ImproveSkillRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Points, validation.Required, validation.Min(-100), validation.Max(100)),
	)
}

// EventRequest is the body of POST /community/events and POST /system/events.
type EventRequest struct {
	Type    string          `json:"type" example:"POST_CREATED" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (r EventRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Type, validation.Required))
}

// OpenChatRequest is the body of POST /messages/open.
type OpenChatRequest struct {
	UserID  string `json:"user_id" example:"u-7" validate:"required"`
	Name    string `json:"name" example:"Sam Rivera" validate:"required"`
	Avatar  string `json:"avatar,omitempty"`
	Message string `json:"message,omitempty" example:"Saw your PR, got a minute?"`
}

func (r OpenChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Name, validation.Required),
	)
}

// NotificationListResponse wraps a list of notifications.
type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications" validate:"required"`
}

// SyncResponse reports the outcome of an optimistic mutation. Synced is
// false when the local change was applied but the remote call failed.
type SyncResponse struct {
	Synced   bool            `json:"synced"`
	Error    string          `json:"error,omitempty"`
	Snapshot notify.Snapshot `json:"snapshot"`
}

// JobListResponse wraps the jobs catalog.
type JobListResponse struct {
	Jobs []models.Job `json:"jobs" validate:"required"`
}
