package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/devdash/internal/events"
	"github.com/starford/devdash/internal/inbox"
	"github.com/starford/devdash/internal/notify"
	"github.com/starford/devdash/internal/profile"
)

// Deps are the services behind the routes. Inbox may be nil when the
// notification API is served elsewhere; its routes are then not mounted.
type Deps struct {
	Hub      *events.Hub
	Engine   *notify.Engine
	Profiles *profile.Store
	Jobs     notify.JobSource
	Inbox    *inbox.Service
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(deps Deps, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(deps.Engine, deps.Profiles, deps.Jobs)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))
	r.Use(HubMiddleware(deps.Hub))

	// Notification API.
	if deps.Inbox != nil {
		ih := NewInboxHandler(deps.Inbox)
		r.Get("/notifications", ih.List)
		r.Post("/notifications", ih.Create)
		r.Post("/notifications/read-all", ih.MarkAllRead)
		r.Post("/notifications/{id}/read", ih.MarkRead)
	}

	// Dashboard session.
	r.Route("/me", func(r chi.Router) {
		r.Get("/notifications", h.ListNotifications)
		r.Post("/notifications", h.AddNotification)
		r.Post("/notifications/read-all", h.MarkAllRead)
		r.Post("/notifications/{id}/read", h.MarkRead)
		r.Delete("/notifications/{id}", h.DeleteNotification)

		r.Get("/profile", h.GetProfile)
		r.Patch("/profile", h.PatchProfile)
		r.Post("/profile/skills/{name}/improve", h.ImproveSkill)

		r.Post("/session", h.SetSession)
	})

	// Domain buses.
	r.Post("/community/events", PublishCommunity)
	r.Post("/system/events", PublishSystem)
	r.Post("/messages/open", OpenChat)

	r.Get("/jobs", h.ListJobs)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
