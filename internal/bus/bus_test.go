package bus

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/devdash/internal/apperr"
)

func TestPublishInSubscriptionOrder(t *testing.T) {
	b := New[int]("test", nil)
	var got []string
	b.Subscribe(func(int) { got = append(got, "a") })
	b.Subscribe(func(int) { got = append(got, "b") })
	b.Subscribe(func(int) { got = append(got, "c") })

	b.Publish(1)

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("delivery order = %v, want [a b c]", got)
	}
}

func TestPanickingSubscriberIsolated(t *testing.T) {
	b := New[string]("test", nil)
	delivered := 0
	b.Subscribe(func(string) { panic("boom") })
	b.Subscribe(func(string) { delivered++ })

	b.Publish("x")

	if delivered != 1 {
		t.Errorf("second subscriber called %d times, want 1", delivered)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New[int]("test", nil)
	calls := 0
	unsub := b.Subscribe(func(int) { calls++ })

	b.Publish(1)
	unsub()
	unsub() // idempotent
	b.Publish(2)
	b.Publish(3)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d, want 0", b.Len())
	}
}

func TestUnsubscribeDuringPublishSkipsLaterSubscriber(t *testing.T) {
	b := New[int]("test", nil)
	var unsubSecond func()
	secondCalls := 0
	b.Subscribe(func(int) { unsubSecond() })
	unsubSecond = b.Subscribe(func(int) { secondCalls++ })

	b.Publish(1)

	if secondCalls != 0 {
		t.Errorf("disposed subscriber received %d events in flight", secondCalls)
	}
}

func TestSubscribeDuringPublishDoesNotReceiveCurrentEvent(t *testing.T) {
	b := New[int]("test", nil)
	lateCalls := 0
	b.Subscribe(func(v int) {
		if v == 1 {
			b.Subscribe(func(int) { lateCalls++ })
		}
	})

	b.Publish(1)
	if lateCalls != 0 {
		t.Fatalf("late subscriber saw in-flight event")
	}
	b.Publish(2)
	if lateCalls != 1 {
		t.Errorf("late subscriber calls = %d, want 1", lateCalls)
	}
}

func TestNestedPublish(t *testing.T) {
	b := New[int]("test", nil)
	var seen []int
	b.Subscribe(func(v int) {
		seen = append(seen, v)
		if v == 1 {
			b.Publish(2)
		}
	})
	b.Subscribe(func(v int) { seen = append(seen, v*10) })

	b.Publish(1)

	want := []int{1, 2, 20, 10}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

func TestPublishWithoutSubscribersDrops(t *testing.T) {
	b := New[int]("test", nil)
	b.Publish(1)

	calls := 0
	b.Subscribe(func(int) { calls++ })
	if calls != 0 {
		t.Errorf("late subscriber replayed %d events", calls)
	}
}

func TestBusIsolation(t *testing.T) {
	a := New[Envelope]("a", nil)
	b := New[Envelope]("b", nil)
	gotA, gotB := 0, 0
	a.Subscribe(func(Envelope) { gotA++ })
	b.Subscribe(func(Envelope) { gotB++ })

	b.Publish(Envelope{Type: "X"})

	if gotA != 0 {
		t.Errorf("bus a received %d events published on b", gotA)
	}
	if gotB != 1 {
		t.Errorf("bus b received %d events, want 1", gotB)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(New[int]("community", nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Register(New[int]("community", nil))
	if !errors.Is(err, apperr.ErrDuplicateChannel) {
		t.Fatalf("err = %v, want ErrDuplicateChannel", err)
	}
	if want := `"community"`; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not name the channel", err)
	}
	if _, ok := r.Lookup("community"); !ok {
		t.Error("Lookup failed for registered channel")
	}
	if names := r.Names(); len(names) != 1 {
		t.Errorf("Names = %v", names)
	}
}

func TestRegistryEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(New[int]("", nil)); err == nil {
		t.Error("expected error for empty channel name")
	}
}
