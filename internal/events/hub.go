package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/bus"
	"github.com/starford/devdash/internal/models"
)

// Hub owns one instance of every bus. It is built once at startup and
// passed to the components that publish or subscribe.
type Hub struct {
	Profile       *bus.Bus[models.UserProfile]
	Notification  *DomainBus
	Community     *DomainBus
	DirectMessage *DomainBus
	System        *DomainBus

	registry *bus.Registry
}

// NewHub constructs every bus and registers it by channel name.
func NewHub(logger *slog.Logger) (*Hub, error) {
	h := &Hub{
		Profile: bus.New[models.UserProfile](ChannelProfile, logger),
		Notification: newDomainBus(ChannelNotification, logger, map[string]decoder{
			TypeNotification: decodeInto[NotificationPayload](),
		}),
		Community: newDomainBus(ChannelCommunity, logger, map[string]decoder{
			TypePostCreated:   decodeInto[PostCreated](),
			TypeReactionAdded: decodeInto[ReactionAdded](),
			TypeTyping:        decodeInto[Typing](),
			TypeCommentAdded:  decodeInto[CommentAdded](),
		}),
		DirectMessage: newDomainBus(ChannelDirectMessage, logger, map[string]decoder{
			TypeOpenChat: decodeInto[OpenChat](),
		}),
		System: newDomainBus(ChannelSystem, logger, map[string]decoder{
			TypeJobCompleted:        decodeInto[JobCompleted](),
			TypeJobPosted:           decodeInto[JobPosted](),
			TypeSessionStarted:      decodeInto[SessionStarted](),
			TypeSessionEnded:        decodeInto[SessionEnded](),
			TypeAchievementUnlocked: decodeInto[AchievementUnlocked](),
		}),
		registry: bus.NewRegistry(),
	}

	for _, ch := range []bus.Channel{h.Profile, h.Notification, h.Community, h.DirectMessage, h.System} {
		if err := h.registry.Register(ch); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Registry returns the channel registry. Additional channels (for example
// the engine snapshot bus) are registered here too.
func (h *Hub) Registry() *bus.Registry { return h.registry }

// Domain returns the domain bus registered under name.
func (h *Hub) Domain(name string) (*DomainBus, bool) {
	ch, ok := h.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	d, ok := ch.(*DomainBus)
	return d, ok
}

// DomainBuses returns the tag-constrained buses.
func (h *Hub) DomainBuses() []*DomainBus {
	return []*DomainBus{h.Notification, h.Community, h.DirectMessage, h.System}
}

type hubKey struct{}

// WithHub returns a context carrying h.
func WithHub(ctx context.Context, h *Hub) context.Context {
	return context.WithValue(ctx, hubKey{}, h)
}

// FromContext returns the hub stored in ctx, or apperr.ErrMissingHub.
func FromContext(ctx context.Context) (*Hub, error) {
	h, ok := ctx.Value(hubKey{}).(*Hub)
	if !ok || h == nil {
		return nil, fmt.Errorf("events: %w", apperr.ErrMissingHub)
	}
	return h, nil
}

// MustFromContext is FromContext that panics when the hub is missing.
func MustFromContext(ctx context.Context) *Hub {
	h, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return h
}
