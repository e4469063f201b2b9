package sse

import (
	"github.com/starford/devdash/internal/bus"
	"github.com/starford/devdash/internal/events"
	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/notify"
)

// ProfileEvent is the event type sent for every profile broadcast.
const ProfileEvent = events.ChannelProfile + ".updated"

// Bridge forwards every hub bus and the engine snapshot bus to b. Domain
// envelopes become events named "<channel>.<TYPE>". The returned func
// removes every subscription.
func Bridge(hub *events.Hub, engine *notify.Engine, b *Broker) func() {
	var unsubs []func()
	for _, d := range hub.DomainBuses() {
		name := d.Name()
		unsubs = append(unsubs, d.Subscribe(func(env bus.Envelope) {
			b.Publish(Event{Type: name + "." + env.Type, Data: env.Data})
		}))
	}
	unsubs = append(unsubs, hub.Profile.Subscribe(func(p models.UserProfile) {
		b.Publish(Event{Type: ProfileEvent, Data: p})
	}))
	if engine != nil {
		unsubs = append(unsubs, engine.Subscribe(func(s notify.Snapshot) {
			b.PublishSnapshot(s)
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
