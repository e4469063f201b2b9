package events

import (
	"time"

	"github.com/starford/devdash/internal/bus"
	"github.com/starford/devdash/internal/models"
)

// Channel names.
const (
	ChannelProfile       = "profile"
	ChannelNotification  = "notification"
	ChannelCommunity     = "community"
	ChannelDirectMessage = "direct-message"
	ChannelSystem        = "system"
)

// Community tags.
const (
	TypePostCreated   = "POST_CREATED"
	TypeReactionAdded = "REACTION_ADDED"
	TypeTyping        = "TYPING"
	TypeCommentAdded  = "COMMUNITY_COMMENT_ADDED"
)

// Direct-message tags.
const (
	TypeOpenChat = "OPEN_CHAT"
)

// System tags.
const (
	TypeJobCompleted        = "JOB_COMPLETED"
	TypeJobPosted           = "JOB_POSTED"
	TypeSessionStarted      = "SESSION_STARTED"
	TypeSessionEnded        = "SESSION_ENDED"
	TypeAchievementUnlocked = "ACHIEVEMENT_UNLOCKED"
)

// Realtime notification tag.
const (
	TypeNotification = "NOTIFICATION"
)

type PostCreated struct {
	PostID   string   `json:"post_id"`
	AuthorID string   `json:"author_id"`
	Author   string   `json:"author"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags,omitempty"`
}

func (e PostCreated) Envelope() bus.Envelope { return bus.Envelope{Type: TypePostCreated, Data: e} }

type ReactionAdded struct {
	PostID   string `json:"post_id"`
	UserID   string `json:"user_id"`
	Reaction string `json:"reaction"`
}

func (e ReactionAdded) Envelope() bus.Envelope { return bus.Envelope{Type: TypeReactionAdded, Data: e} }

type Typing struct {
	PostID string `json:"post_id"`
	UserID string `json:"user_id"`
	User   string `json:"user"`
	Active bool   `json:"active"`
}

func (e Typing) Envelope() bus.Envelope { return bus.Envelope{Type: TypeTyping, Data: e} }

type CommentAdded struct {
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id"`
	AuthorID  string `json:"author_id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
}

func (e CommentAdded) Envelope() bus.Envelope { return bus.Envelope{Type: TypeCommentAdded, Data: e} }

// OpenChat asks the messaging surface to open a conversation with a user.
type OpenChat struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e OpenChat) Envelope() bus.Envelope { return bus.Envelope{Type: TypeOpenChat, Data: e} }

type JobCompleted struct {
	JobID       string `json:"job_id"`
	Title       string `json:"title"`
	CompletedBy string `json:"completed_by"`
	Reward      string `json:"reward,omitempty"`
}

func (e JobCompleted) Envelope() bus.Envelope { return bus.Envelope{Type: TypeJobCompleted, Data: e} }

type JobPosted struct {
	Job models.Job `json:"job"`
}

func (e JobPosted) Envelope() bus.Envelope { return bus.Envelope{Type: TypeJobPosted, Data: e} }

type SessionStarted struct {
	SessionID string `json:"session_id"`
	Host      string `json:"host"`
	Topic     string `json:"topic"`
}

func (e SessionStarted) Envelope() bus.Envelope { return bus.Envelope{Type: TypeSessionStarted, Data: e} }

type SessionEnded struct {
	SessionID string        `json:"session_id"`
	Duration  time.Duration `json:"duration"`
}

func (e SessionEnded) Envelope() bus.Envelope { return bus.Envelope{Type: TypeSessionEnded, Data: e} }

type AchievementUnlocked struct {
	Name string `json:"name"`
	XP   int    `json:"xp"`
}

func (e AchievementUnlocked) Envelope() bus.Envelope {
	return bus.Envelope{Type: TypeAchievementUnlocked, Data: e}
}

// NotificationPayload is the loosely typed body of a realtime notification.
// Consumers default any missing field.
type NotificationPayload map[string]any

func (p NotificationPayload) Envelope() bus.Envelope {
	return bus.Envelope{Type: TypeNotification, Data: p}
}
