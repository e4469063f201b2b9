// Package events defines the domain buses (community, direct message,
// system, realtime notification) and the Hub that owns every bus instance.
//
// Buses are transport only: they validate that a published tag belongs to
// their vocabulary and fan the envelope out. Reconciliation, deduplication
// and persistence belong to the consumers.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/bus"
)

type decoder func(raw json.RawMessage) (any, error)

func decodeInto[T any]() decoder {
	return func(raw json.RawMessage) (any, error) {
		var v T
		if len(raw) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// DomainBus is a bus restricted to a closed set of event tags.
type DomainBus struct {
	bus      *bus.Bus[bus.Envelope]
	decoders map[string]decoder
}

func newDomainBus(name string, logger *slog.Logger, decoders map[string]decoder) *DomainBus {
	return &DomainBus{bus: bus.New[bus.Envelope](name, logger), decoders: decoders}
}

// Name returns the channel name.
func (d *DomainBus) Name() string { return d.bus.Name() }

// Len returns the number of subscribers.
func (d *DomainBus) Len() int { return d.bus.Len() }

// Types returns the accepted tags in sorted order.
func (d *DomainBus) Types() []string {
	out := make([]string, 0, len(d.decoders))
	for t := range d.decoders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Accepts reports whether typ is part of this bus vocabulary.
func (d *DomainBus) Accepts(typ string) bool {
	_, ok := d.decoders[typ]
	return ok
}

// Subscribe registers fn for every envelope on this bus.
func (d *DomainBus) Subscribe(fn func(bus.Envelope)) func() {
	return d.bus.Subscribe(fn)
}

// Publish fans env out to subscribers. Tags outside the vocabulary are
// rejected with apperr.ErrUnknownEvent.
func (d *DomainBus) Publish(env bus.Envelope) error {
	if !d.Accepts(env.Type) {
		return fmt.Errorf("events: %s: %q: %w", d.Name(), env.Type, apperr.ErrUnknownEvent)
	}
	d.bus.Publish(env)
	return nil
}

// PublishJSON decodes raw into the payload type registered for typ and
// publishes it.
func (d *DomainBus) PublishJSON(typ string, raw json.RawMessage) error {
	dec, ok := d.decoders[typ]
	if !ok {
		return fmt.Errorf("events: %s: %q: %w", d.Name(), typ, apperr.ErrUnknownEvent)
	}
	data, err := dec(raw)
	if err != nil {
		return fmt.Errorf("events: %s: decode %s: %w", d.Name(), typ, err)
	}
	d.bus.Publish(bus.Envelope{Type: typ, Data: data})
	return nil
}
