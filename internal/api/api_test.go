package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/devdash/internal/bus"
	"github.com/starford/devdash/internal/events"
	"github.com/starford/devdash/internal/inbox"
	"github.com/starford/devdash/internal/jobs"
	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/notify"
	"github.com/starford/devdash/internal/profile"
	"github.com/starford/devdash/internal/testutil"
)

type apiEnv struct {
	hub    *events.Hub
	engine *notify.Engine
	inbox  *inbox.Service
	router http.Handler
}

// testEnv wires an in-process inbox, engine, profile store and a one-job
// catalog behind the router. An empty authToken disables auth.
func testEnv(t *testing.T, authToken string) *apiEnv {
	t.Helper()

	hub, err := events.NewHub(nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	store := testutil.TestKV(t)

	_, jobsFS := testutil.TestCatalogDir(t)
	testutil.WriteJob(t, jobsFS, "audit.md", "id: J1\ntitle: Smart contract audit\ncreated_by: Dana\ntech_stack: [Rust, Solana]", "Audit our program.\n")
	catalog := jobs.NewCatalog(jobsFS, nil)
	if _, err := catalog.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	svc := inbox.NewService(store, inbox.OnCreate(func(userID string, n models.Notification) {
		payload := events.NotificationPayload{
			"id": n.ID, "user_id": userID, "title": n.Title, "message": n.Message,
			"type": string(n.Type), "timestamp": n.Timestamp,
		}
		_ = hub.Notification.Publish(payload.Envelope())
	}))
	profiles := profile.NewStore(store, hub.Profile, nil)
	engine := notify.NewEngine(svc, hub, profiles, store, notify.WithJobs(catalog))
	if err := engine.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(engine.Close)

	router := NewRouter(Deps{Hub: hub, Engine: engine, Profiles: profiles, Jobs: catalog, Inbox: svc}, authToken != "", authToken, nil)
	return &apiEnv{hub: hub, engine: engine, inbox: svc, router: router}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestInboxRoutes(t *testing.T) {
	env := testEnv(t, "")

	w := env.do(t, http.MethodPost, "/notifications", map[string]any{"user_id": "u1", "title": "Welcome"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[models.Notification](t, w)
	if created.ID == "" || created.Type != models.NotificationSystem {
		t.Errorf("created = %+v", created)
	}

	w = env.do(t, http.MethodGet, "/notifications?user_id=u1", nil)
	list := decode[NotificationListResponse](t, w)
	if len(list.Notifications) != 1 || list.Notifications[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}

	if w = env.do(t, http.MethodPost, "/notifications/"+created.ID+"/read", nil); w.Code != http.StatusNoContent {
		t.Errorf("mark read status = %d", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/notifications/nope/read", nil); w.Code != http.StatusNotFound {
		t.Errorf("mark unknown status = %d", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/notifications/read-all", map[string]string{"user_id": "u1"}); w.Code != http.StatusNoContent {
		t.Errorf("read-all status = %d", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/notifications/read-all", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("read-all without user status = %d", w.Code)
	}
	if w = env.do(t, http.MethodGet, "/notifications", nil); w.Code != http.StatusBadRequest {
		t.Errorf("list without user status = %d", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/notifications", map[string]any{"title": "no user"}); w.Code != http.StatusBadRequest {
		t.Errorf("create without user status = %d", w.Code)
	}
}

func TestSessionFetchesAndRealtimeDelivers(t *testing.T) {
	env := testEnv(t, "")

	w := env.do(t, http.MethodPost, "/notifications", map[string]any{"user_id": "u1", "title": "Before login"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/me/session", SessionRequest{UserID: "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("session status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[SyncResponse](t, w)
	if !resp.Synced || resp.Snapshot.UserID != "u1" || len(resp.Snapshot.Notifications) != 1 {
		t.Fatalf("session response = %+v", resp)
	}

	// Delivered to the signed-in user in real time.
	env.do(t, http.MethodPost, "/notifications", map[string]any{"user_id": "u1", "title": "Live", "type": "community"})
	// Delivered to someone else: ignored by this session.
	env.do(t, http.MethodPost, "/notifications", map[string]any{"user_id": "u2", "title": "Not mine"})

	snap := decode[notify.Snapshot](t, env.do(t, http.MethodGet, "/me/notifications", nil))
	if len(snap.Notifications) != 2 || snap.Unread != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Notifications[0].Title != "Live" {
		t.Errorf("newest = %q, want Live", snap.Notifications[0].Title)
	}

	// Refreshing merges the realtime copy with the server copy by id.
	env.do(t, http.MethodPost, "/me/session", SessionRequest{UserID: "u1"})
	snap = decode[notify.Snapshot](t, env.do(t, http.MethodGet, "/me/notifications", nil))
	if len(snap.Notifications) != 2 {
		t.Errorf("after refresh = %d entries, want 2", len(snap.Notifications))
	}

	id := snap.Notifications[0].ID
	w = env.do(t, http.MethodPost, "/me/notifications/"+id+"/read", nil)
	resp = decode[SyncResponse](t, w)
	if !resp.Synced || resp.Snapshot.Unread != 1 {
		t.Errorf("mark read response = %+v", resp)
	}
	server, _ := env.inbox.List(t.Context(), "u1")
	for _, n := range server {
		if n.ID == id && !n.Read {
			t.Error("server copy not marked read")
		}
	}

	w = env.do(t, http.MethodPost, "/me/notifications/read-all", nil)
	if resp = decode[SyncResponse](t, w); resp.Snapshot.Unread != 0 {
		t.Errorf("read-all unread = %d", resp.Snapshot.Unread)
	}

	w = env.do(t, http.MethodPost, "/me/session", SessionRequest{})
	if resp = decode[SyncResponse](t, w); len(resp.Snapshot.Notifications) != 0 {
		t.Errorf("sign out left %d entries", len(resp.Snapshot.Notifications))
	}
}

func TestAddNotificationValidation(t *testing.T) {
	env := testEnv(t, "")

	if w := env.do(t, http.MethodPost, "/me/notifications", map[string]any{"message": "no title"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/me/notifications", map[string]any{"title": "x", "type": "bogus"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad type status = %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/me/notifications", strings.NewReader("{"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/me/notifications", CreateNotificationRequest{Title: "Saved", Type: models.NotificationAchievement})
	if w.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body = %s", w.Code, w.Body.String())
	}
	n := decode[models.Notification](t, w)
	if !strings.HasPrefix(n.ID, "notif-") || n.Read {
		t.Errorf("added = %+v", n)
	}

	if w = env.do(t, http.MethodPost, "/me/notifications/missing/read", nil); w.Code != http.StatusNotFound {
		t.Errorf("mark missing status = %d", w.Code)
	}
	if w = env.do(t, http.MethodDelete, "/me/notifications/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w = env.do(t, http.MethodDelete, "/me/notifications/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", w.Code)
	}
}

func TestProfileRoutesDriveJobMatch(t *testing.T) {
	env := testEnv(t, "")
	env.do(t, http.MethodPost, "/me/session", SessionRequest{UserID: "u1"})

	p := decode[models.UserProfile](t, env.do(t, http.MethodGet, "/me/profile", nil))
	if p.Name != "Alex Developer" {
		t.Errorf("default name = %q", p.Name)
	}

	w := env.do(t, http.MethodPatch, "/me/profile", map[string]any{"title": "Staff Engineer"})
	if p = decode[models.UserProfile](t, w); p.Title != "Staff Engineer" || p.Name != "Alex Developer" {
		t.Errorf("patched = %+v", p)
	}

	if w = env.do(t, http.MethodPost, "/me/profile/skills/Rust/improve", map[string]int{}); w.Code != http.StatusBadRequest {
		t.Errorf("zero points status = %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/me/profile/skills/Rust/improve", ImproveSkillRequest{Points: 15})
	if w.Code != http.StatusOK {
		t.Fatalf("improve status = %d, body = %s", w.Code, w.Body.String())
	}

	snap := decode[notify.Snapshot](t, env.do(t, http.MethodGet, "/me/notifications", nil))
	if len(snap.Notifications) != 1 || snap.Notifications[0].Type != models.NotificationJobMatch {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Notifications[0].Link != "/jobs/J1" {
		t.Errorf("link = %q", snap.Notifications[0].Link)
	}

	env.do(t, http.MethodPost, "/me/profile/skills/rust/improve", ImproveSkillRequest{Points: 5})
	snap = decode[notify.Snapshot](t, env.do(t, http.MethodGet, "/me/notifications", nil))
	if len(snap.Notifications) != 1 {
		t.Errorf("job match repeated: %d entries", len(snap.Notifications))
	}
}

func TestListJobs(t *testing.T) {
	env := testEnv(t, "")
	resp := decode[JobListResponse](t, env.do(t, http.MethodGet, "/jobs", nil))
	if len(resp.Jobs) != 1 || resp.Jobs[0].ID != "J1" {
		t.Fatalf("jobs = %+v", resp.Jobs)
	}
}

func TestDomainEventRoutes(t *testing.T) {
	env := testEnv(t, "")

	var got []bus.Envelope
	env.hub.Community.Subscribe(func(e bus.Envelope) { got = append(got, e) })
	env.hub.DirectMessage.Subscribe(func(e bus.Envelope) { got = append(got, e) })

	w := env.do(t, http.MethodPost, "/community/events", map[string]any{
		"type":    events.TypePostCreated,
		"payload": map[string]any{"post_id": "p1", "author": "Sam", "content": "hello"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("community status = %d, body = %s", w.Code, w.Body.String())
	}
	if w = env.do(t, http.MethodPost, "/community/events", map[string]any{"type": "NOPE"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown tag status = %d", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/community/events", map[string]any{"type": events.TypeJobPosted}); w.Code != http.StatusBadRequest {
		t.Errorf("system tag on community bus status = %d", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/messages/open", map[string]any{"user_id": "u7"}); w.Code != http.StatusBadRequest {
		t.Errorf("open chat without name status = %d", w.Code)
	}
	if w = env.do(t, http.MethodPost, "/messages/open", OpenChatRequest{UserID: "u7", Name: "Sam"}); w.Code != http.StatusAccepted {
		t.Errorf("open chat status = %d", w.Code)
	}

	if len(got) != 2 {
		t.Fatalf("delivered %d envelopes, want 2", len(got))
	}
	post, ok := got[0].Data.(events.PostCreated)
	if !ok || post.PostID != "p1" || post.Author != "Sam" {
		t.Errorf("community payload = %#v", got[0].Data)
	}
	if chat, ok := got[1].Data.(events.OpenChat); !ok || chat.Name != "Sam" {
		t.Errorf("dm payload = %#v", got[1].Data)
	}
}

func TestSystemEventRelayedToNotifications(t *testing.T) {
	env := testEnv(t, "")
	w := env.do(t, http.MethodPost, "/system/events", map[string]any{
		"type":    events.TypeAchievementUnlocked,
		"payload": map[string]any{"name": "First PR", "xp": 50},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("system status = %d, body = %s", w.Code, w.Body.String())
	}
	snap := decode[notify.Snapshot](t, env.do(t, http.MethodGet, "/me/notifications", nil))
	if len(snap.Notifications) != 1 || snap.Notifications[0].Type != models.NotificationAchievement {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestPublishWithoutHubFails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/community/events", strings.NewReader(`{"type":"TYPING"}`))
	w := httptest.NewRecorder()
	PublishCommunity(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := testEnv(t, "secret")

	w := env.do(t, http.MethodGet, "/me/profile", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/me/profile", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me/profile", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token status = %d", w.Code)
	}
}
