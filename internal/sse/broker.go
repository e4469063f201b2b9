// Package sse streams bus traffic to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// SnapshotEvent is the event type of coalesced engine snapshots.
const SnapshotEvent = "engine.snapshot"

const (
	clientBuffer      = 64
	keepAliveInterval = 15 * time.Second
)

// Event is one SSE frame. Type is "<channel>.<name>"; the channel part is
// what clients filter on.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Channel returns the channel part of the event type.
func (e Event) Channel() string {
	name, _, _ := strings.Cut(e.Type, ".")
	return name
}

// client is one connected stream. An empty filter accepts every channel.
type client struct {
	ch     chan []byte
	filter map[string]bool
}

func (c *client) wants(channel string) bool {
	return len(c.filter) == 0 || c.filter[channel]
}

// Broker fans events out to SSE clients.
//
// A single loop goroutine owns the client set, the frame counter and the
// snapshot throttle; public methods talk to it over channels.
type Broker struct {
	snapshotMin time.Duration

	subscribeCh   chan *client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	snapshotCh    chan any
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. Snapshots are sent at most once per
// snapshotThrottle; the latest one always goes out.
func NewBroker(snapshotThrottle time.Duration) *Broker {
	if snapshotThrottle <= 0 {
		snapshotThrottle = 250 * time.Millisecond
	}
	b := &Broker{
		snapshotMin:   snapshotThrottle,
		subscribeCh:   make(chan *client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		snapshotCh:    make(chan any, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

// frame renders an event in wire format.
func frame(id uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", id, event.Type, payload), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]*client)
	var (
		seq          uint64
		lastSnapshot time.Time
		pending      any
		hasPending   bool
		flush        *time.Timer
		flushC       <-chan time.Time
	)

	broadcast := func(event Event) {
		seq++
		raw, err := frame(seq, event)
		if err != nil {
			return
		}
		channel := event.Channel()
		for ch, c := range clients {
			if !c.wants(channel) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	sendSnapshot := func(data any) {
		lastSnapshot = time.Now()
		broadcast(Event{Type: SnapshotEvent, Data: data})
	}

	for {
		select {
		case <-b.stopCh:
			if flush != nil {
				flush.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case data := <-b.snapshotCh:
			wait := b.snapshotMin - time.Since(lastSnapshot)
			if wait <= 0 && flushC == nil {
				sendSnapshot(data)
				continue
			}
			pending, hasPending = data, true
			if flushC == nil {
				flush = time.NewTimer(max(wait, 0))
				flushC = flush.C
			}

		case <-flushC:
			flushC = nil
			if hasPending {
				sendSnapshot(pending)
				pending, hasPending = nil, false
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client receiving events of the given channels, or of
// every channel when none are named.
func (b *Broker) Subscribe(channels ...string) chan []byte {
	c := &client{ch: make(chan []byte, clientBuffer)}
	if len(channels) > 0 {
		c.filter = make(map[string]bool, len(channels))
		for _, name := range channels {
			c.filter[name] = true
		}
	}
	if b.closed.Load() {
		close(c.ch)
		return c.ch
	}
	select {
	case b.subscribeCh <- c:
	case <-b.stopped:
		close(c.ch)
	}
	return c.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues an event for every interested client.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishSnapshot queues an engine snapshot. Bursts are coalesced so that
// clients see the most recent snapshot at most once per throttle interval.
func (b *Broker) PublishSnapshot(data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.snapshotCh <- data:
	case <-b.stopped:
	}
}

// parseChannels reads the comma separated ?channels= filter.
func parseChannels(r *http.Request) []string {
	var out []string
	for _, name := range strings.Split(r.URL.Query().Get("channels"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// ServeHTTP is the SSE endpoint (GET /api/events[?channels=a,b]). Idle
// streams get a comment line every keepAliveInterval.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(parseChannels(r)...)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAliveInterval)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
