// Package models defines the domain types for devdash.
package models

import "time"

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationSystem      NotificationType = "system"
	NotificationJobMatch    NotificationType = "job_match"
	NotificationCommunity   NotificationType = "community"
	NotificationMessage     NotificationType = "message"
	NotificationSession     NotificationType = "session"
	NotificationAchievement NotificationType = "achievement"
)

// Notification is a single entry in the user's notification list.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	Timestamp time.Time        `json:"timestamp"`
	Link      string           `json:"link,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

// Clone returns a copy that shares no mutable state with n.
func (n Notification) Clone() Notification {
	if n.Metadata != nil {
		md := make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			md[k] = v
		}
		n.Metadata = md
	}
	return n
}
