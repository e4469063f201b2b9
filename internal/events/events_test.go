package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/bus"
	"github.com/starford/devdash/internal/models"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	h, err := NewHub(nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	return h
}

func TestHubRegistersEveryChannel(t *testing.T) {
	h := testHub(t)
	want := []string{ChannelCommunity, ChannelDirectMessage, ChannelNotification, ChannelProfile, ChannelSystem}
	got := h.Registry().Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
	if err := h.Registry().Register(bus.New[int](ChannelCommunity, nil)); !errors.Is(err, apperr.ErrDuplicateChannel) {
		t.Errorf("duplicate register err = %v", err)
	}
}

func TestDomainBusRejectsUnknownTag(t *testing.T) {
	h := testHub(t)
	calls := 0
	h.Community.Subscribe(func(bus.Envelope) { calls++ })

	err := h.Community.Publish(bus.Envelope{Type: TypeOpenChat})
	if !errors.Is(err, apperr.ErrUnknownEvent) {
		t.Fatalf("err = %v, want ErrUnknownEvent", err)
	}
	if calls != 0 {
		t.Errorf("subscriber received rejected event")
	}

	if err := h.Community.Publish(PostCreated{PostID: "p1"}.Envelope()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBusesAreIsolated(t *testing.T) {
	h := testHub(t)
	community, system, dm := 0, 0, 0
	h.Community.Subscribe(func(bus.Envelope) { community++ })
	h.System.Subscribe(func(bus.Envelope) { system++ })
	h.DirectMessage.Subscribe(func(bus.Envelope) { dm++ })

	_ = h.System.Publish(JobCompleted{JobID: "J1"}.Envelope())

	if community != 0 || dm != 0 {
		t.Errorf("system event leaked: community=%d dm=%d", community, dm)
	}
	if system != 1 {
		t.Errorf("system = %d, want 1", system)
	}
}

func TestPublishJSONDecodesPayload(t *testing.T) {
	h := testHub(t)
	var got bus.Envelope
	h.DirectMessage.Subscribe(func(e bus.Envelope) { got = e })

	raw := json.RawMessage(`{"user_id":"u7","name":"Ada"}`)
	if err := h.DirectMessage.PublishJSON(TypeOpenChat, raw); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	oc, ok := got.Data.(OpenChat)
	if !ok {
		t.Fatalf("data type = %T, want OpenChat", got.Data)
	}
	if oc.UserID != "u7" || oc.Name != "Ada" {
		t.Errorf("payload = %+v", oc)
	}

	if err := h.DirectMessage.PublishJSON(TypeOpenChat, json.RawMessage(`{bad`)); err == nil {
		t.Error("expected decode error")
	}
	if err := h.DirectMessage.PublishJSON("NOPE", nil); !errors.Is(err, apperr.ErrUnknownEvent) {
		t.Errorf("unknown tag err = %v", err)
	}
}

func TestNotificationPayloadDecodesAsMap(t *testing.T) {
	h := testHub(t)
	var got bus.Envelope
	h.Notification.Subscribe(func(e bus.Envelope) { got = e })

	if err := h.Notification.PublishJSON(TypeNotification, json.RawMessage(`{"title":"Hi"}`)); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	p, ok := got.Data.(NotificationPayload)
	if !ok || p["title"] != "Hi" {
		t.Errorf("payload = %#v", got.Data)
	}
}

func TestProfileBusCarriesFullProfile(t *testing.T) {
	h := testHub(t)
	var got models.UserProfile
	h.Profile.Subscribe(func(p models.UserProfile) { got = p })
	h.Profile.Publish(models.UserProfile{Name: "Ada", Skills: []models.Skill{{Name: "Go", Level: 10}}})
	if got.Name != "Ada" || len(got.Skills) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestHubContext(t *testing.T) {
	if _, err := FromContext(context.Background()); !errors.Is(err, apperr.ErrMissingHub) {
		t.Fatalf("err = %v, want ErrMissingHub", err)
	}

	h := testHub(t)
	ctx := WithHub(context.Background(), h)
	got, err := FromContext(ctx)
	if err != nil || got != h {
		t.Fatalf("FromContext = %p, %v", got, err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustFromContext did not panic without hub")
		}
	}()
	MustFromContext(context.Background())
}

func TestDomainLookup(t *testing.T) {
	h := testHub(t)
	d, ok := h.Domain(ChannelSystem)
	if !ok || d != h.System {
		t.Fatalf("Domain(system) = %v, %v", d, ok)
	}
	if _, ok := h.Domain(ChannelProfile); ok {
		t.Error("profile bus is not a domain bus")
	}
	if len(d.Types()) != 5 {
		t.Errorf("system types = %v", d.Types())
	}
}
