// Package notify implements the notification engine: the in-memory
// notification list reconciled against a remote API, local and realtime
// additions, the derived unread count, and the skill-based job matcher.
//
// Mutations are optimistic. MarkAsRead and MarkAllAsRead flip the local
// state before the remote call starts and never roll it back when the call
// fails; the list converges on the next Refresh.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/bus"
	"github.com/starford/devdash/internal/events"
	"github.com/starford/devdash/internal/kv"
	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/profile"
)

// ChannelEngine is the registry name of the engine snapshot bus.
const ChannelEngine = "engine"

// Snapshot is published to engine subscribers after every list mutation.
type Snapshot struct {
	UserID        string                `json:"user_id"`
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithJobs sets the catalog scanned by the matcher.
func WithJobs(src JobSource) Option {
	return func(e *Engine) { e.jobs = src }
}

// Engine owns the notification list of the current session.
type Engine struct {
	remote   RemoteAPI
	hub      *events.Hub
	profiles *profile.Store
	jobs     JobSource
	logger   *slog.Logger
	now      func() time.Time

	ids     *idClock
	ledger  *Ledger
	matcher *Matcher
	changes *bus.Bus[Snapshot]
	fetches singleflight.Group

	mu         sync.Mutex
	userID     string
	generation uint64
	items      []models.Notification
	localIDs   map[string]struct{}
	unsubs     []func()
	started    bool
}

// NewEngine wires an engine to its collaborators. store holds the
// job-match ledger.
func NewEngine(remote RemoteAPI, hub *events.Hub, profiles *profile.Store, store kv.Store, opts ...Option) *Engine {
	e := &Engine{
		remote:   remote,
		hub:      hub,
		profiles: profiles,
		jobs:     StaticJobs(nil),
		logger:   slog.Default(),
		now:      time.Now,
		localIDs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ids = &idClock{now: e.now}
	e.ledger = NewLedger(store, e.logger)
	e.matcher = newMatcher(e.ledger, e, e.logger)
	e.changes = bus.New[Snapshot](ChannelEngine, e.logger)
	return e
}

// Start subscribes the engine to the realtime, system and profile buses and
// registers its snapshot bus in the hub registry.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	if err := e.hub.Registry().Register(e.changes); err != nil {
		return fmt.Errorf("notify: start: %w", err)
	}

	unsubs := []func(){
		e.hub.Notification.Subscribe(e.ingestRealtime),
		e.hub.System.Subscribe(e.relaySystem),
		e.profiles.Subscribe(func(p models.UserProfile) { e.scan(p, nil) }),
	}

	e.mu.Lock()
	e.unsubs = append(e.unsubs, unsubs...)
	e.mu.Unlock()

	e.ScanJobMatches()
	return nil
}

// Close disposes every bus subscription held by the engine.
func (e *Engine) Close() {
	e.mu.Lock()
	unsubs := e.unsubs
	e.unsubs = nil
	e.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// Ledger exposes the job-match ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Changes returns the snapshot bus.
func (e *Engine) Changes() *bus.Bus[Snapshot] { return e.changes }

// Subscribe registers fn for every snapshot.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	return e.changes.Subscribe(fn)
}

// UserID returns the current user, or "" when unauthenticated.
func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// SetUser switches the session. An empty id signs out: the list is cleared
// and the matcher goes idle. A new id clears the list, fetches the
// authoritative list and runs the initial job-match check. Setting the
// current id again only refreshes.
func (e *Engine) SetUser(ctx context.Context, userID string) error {
	e.mu.Lock()
	if userID != "" && userID == e.userID {
		e.mu.Unlock()
		return e.Refresh(ctx)
	}
	e.userID = userID
	e.generation++
	e.items = nil
	e.localIDs = make(map[string]struct{})
	e.mu.Unlock()

	e.publish()
	if userID == "" {
		return nil
	}

	err := e.Refresh(ctx)
	e.ScanJobMatches()
	return err
}

// Refresh fetches the authoritative list for the current user and merges it
// into memory by id: fetched entries replace their local counterparts and
// local-only entries are kept. Concurrent refreshes for the same user share
// one remote call, and a result that arrives after a user switch is dropped.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	userID, gen := e.userID, e.generation
	e.mu.Unlock()
	if userID == "" {
		return nil
	}

	// The shared fetch outlives any single caller; each caller stops
	// waiting on its own context.
	flight := e.fetches.DoChan(userID, func() (any, error) {
		return e.remote.List(context.WithoutCancel(ctx), userID)
	})
	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return fmt.Errorf("notify: refresh: %w", ctx.Err())
	}
	v, err := res.Val, res.Err
	if err != nil {
		e.logger.Warn("notify: fetch failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return fmt.Errorf("notify: refresh: %w", err)
	}
	fetched, _ := v.([]models.Notification)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		e.logger.Debug("notify: dropping stale fetch", slog.String("user_id", userID))
		return nil
	}
	e.mergeLocked(fetched)
	e.mu.Unlock()

	e.publish()
	return nil
}

func (e *Engine) mergeLocked(fetched []models.Notification) {
	now := e.now()
	remote := make(map[string]struct{}, len(fetched))
	merged := make([]models.Notification, 0, len(fetched)+len(e.localIDs))

	for _, n := range e.items {
		if _, local := e.localIDs[n.ID]; local {
			merged = append(merged, n)
		}
	}
	for _, n := range fetched {
		if _, dup := remote[n.ID]; dup || n.ID == "" {
			continue
		}
		remote[n.ID] = struct{}{}
		if n.Type == "" {
			n.Type = models.NotificationSystem
		}
		if n.Timestamp.IsZero() {
			n.Timestamp = now
		}
		merged = append(merged, n.Clone())
	}

	// Server copies win over local entries with the same id.
	out := merged[:0]
	for _, n := range merged {
		if _, local := e.localIDs[n.ID]; local {
			if _, known := remote[n.ID]; known {
				continue
			}
		}
		out = append(out, n)
	}
	for id := range remote {
		delete(e.localIDs, id)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	e.items = out
}

// Add prepends a local-only notification. The id, timestamp and read flag
// are always assigned by the engine; an empty type defaults to system.
func (e *Engine) Add(partial models.Notification) models.Notification {
	n := partial.Clone()
	n.ID = e.ids.notificationID()
	n.Read = false
	n.Timestamp = e.now()
	if n.Type == "" {
		n.Type = models.NotificationSystem
	}

	e.mu.Lock()
	e.prependLocked(n, true)
	e.mu.Unlock()

	e.publish()
	return n.Clone()
}

// prependLocked inserts n at the head, replacing any entry with the same id.
func (e *Engine) prependLocked(n models.Notification, local bool) {
	for i := range e.items {
		if e.items[i].ID == n.ID {
			e.items = append(e.items[:i], e.items[i+1:]...)
			break
		}
	}
	e.items = append([]models.Notification{n}, e.items...)
	if local {
		e.localIDs[n.ID] = struct{}{}
	}
}

// MarkAsRead flips the entry to read, then tells the remote API. A remote
// failure is logged and returned; the local flip stays. Local-only entries
// are never sent to the remote API.
func (e *Engine) MarkAsRead(ctx context.Context, id string) error {
	e.mu.Lock()
	found := false
	for i := range e.items {
		if e.items[i].ID == id {
			e.items[i].Read = true
			found = true
			break
		}
	}
	_, local := e.localIDs[id]
	e.mu.Unlock()

	if !found {
		return fmt.Errorf("notify: mark read %s: %w", id, apperr.ErrNotFound)
	}
	e.publish()
	if local {
		return nil
	}

	if err := e.remote.MarkRead(ctx, id); err != nil {
		e.logger.Warn("notify: mark read failed, keeping local state",
			slog.String("id", id), slog.String("error", err.Error()))
		return fmt.Errorf("notify: mark read %s: %w", id, err)
	}
	return nil
}

// MarkAllAsRead flips every entry to read, then calls the remote bulk
// endpoint for the current user. Without a user no remote call is made.
func (e *Engine) MarkAllAsRead(ctx context.Context) error {
	e.mu.Lock()
	for i := range e.items {
		e.items[i].Read = true
	}
	userID := e.userID
	e.mu.Unlock()

	e.publish()
	if userID == "" {
		return nil
	}
	if err := e.remote.MarkAllRead(ctx, userID); err != nil {
		e.logger.Warn("notify: mark all read failed, keeping local state",
			slog.String("user_id", userID), slog.String("error", err.Error()))
		return fmt.Errorf("notify: mark all read: %w", err)
	}
	return nil
}

// Delete removes the entry locally. There is no remote delete.
func (e *Engine) Delete(id string) bool {
	e.mu.Lock()
	removed := false
	for i := range e.items {
		if e.items[i].ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			removed = true
			break
		}
	}
	delete(e.localIDs, id)
	e.mu.Unlock()

	if removed {
		e.publish()
	}
	return removed
}

// Notifications returns a copy of the list, newest first.
func (e *Engine) Notifications() []models.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyLocked()
}

// UnreadCount counts unread entries on every call.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return unreadIn(e.items)
}

// Snapshot returns the current list and unread count.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{UserID: e.userID, Notifications: e.copyLocked(), Unread: unreadIn(e.items)}
}

func (e *Engine) copyLocked() []models.Notification {
	out := make([]models.Notification, len(e.items))
	for i, n := range e.items {
		out[i] = n.Clone()
	}
	return out
}

func unreadIn(items []models.Notification) int {
	n := 0
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

// publish fans the current snapshot out without holding the lock.
func (e *Engine) publish() {
	e.changes.Publish(e.Snapshot())
}

// ScanJobMatches runs the matcher against the current profile.
func (e *Engine) ScanJobMatches() int {
	return e.scan(e.profiles.Profile(), nil)
}

func (e *Engine) scan(p models.UserProfile, extra []models.Job) int {
	userID := e.UserID()
	if userID == "" {
		return 0
	}
	jobs := e.jobs.Jobs()
	jobs = append(jobs, extra...)
	n, err := e.matcher.Scan(userID, p, jobs)
	if err != nil {
		e.logger.Warn("notify: job match scan incomplete", slog.String("error", err.Error()))
	}
	return n
}

// claimJobMatch records the job in the ledger and, only if it was newly
// recorded, adds the job_match notification. Both happen under the engine
// lock so a session switch cannot split them.
func (e *Engine) claimJobMatch(userID string, job models.Job, matched []string) (bool, error) {
	e.mu.Lock()
	if e.userID != userID {
		e.mu.Unlock()
		return false, nil
	}
	claimed, err := e.ledger.Claim(userID, job.ID)
	if err != nil || !claimed {
		e.mu.Unlock()
		return false, err
	}
	n := jobMatchNotification(e.ids.jobMatchID(job.ID), job, matched, e.now())
	e.prependLocked(n, true)
	e.mu.Unlock()

	e.publish()
	return true, nil
}
