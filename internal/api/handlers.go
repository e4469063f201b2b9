package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/events"
	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/notify"
	"github.com/starford/devdash/internal/profile"
)

// Handler holds the dashboard route handlers.
type Handler struct {
	engine   *notify.Engine
	profiles *profile.Store
	jobs     notify.JobSource
}

// NewHandler creates a new Handler.
func NewHandler(engine *notify.Engine, profiles *profile.Store, jobs notify.JobSource) *Handler {
	return &Handler{engine: engine, profiles: profiles, jobs: jobs}
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func (h *Handler) syncResponse(w http.ResponseWriter, err error) {
	resp := SyncResponse{Synced: err == nil, Snapshot: h.engine.Snapshot()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListNotifications handles GET /me/notifications.
//
//	@Summary		Current notification list and unread count
//	@Tags			notifications
//	@Produce		json
//	@Success		200	{object}	notify.Snapshot
//	@Security		BearerAuth
//	@Router			/me/notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// AddNotification handles POST /me/notifications.
//
//	@Summary		Add a local notification
//	@Tags			notifications
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNotificationRequest	true	"Notification"
//	@Success		201		{object}	models.Notification
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/me/notifications [post]
func (h *Handler) AddNotification(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusCreated, h.engine.Add(req.notification()))
}

// MarkRead handles POST /me/notifications/{id}/read. The local flip is kept
// even if the remote call fails; the response reports synced=false.
//
//	@Summary		Mark one notification read
//	@Tags			notifications
//	@Produce		json
//	@Param			id	path		string	true	"Notification id"
//	@Success		200	{object}	SyncResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/me/notifications/{id}/read [post]
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	err := h.engine.MarkAsRead(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) && !h.has(id) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	h.syncResponse(w, err)
}

func (h *Handler) has(id string) bool {
	for _, n := range h.engine.Notifications() {
		if n.ID == id {
			return true
		}
	}
	return false
}

// MarkAllRead handles POST /me/notifications/read-all.
//
//	@Summary		Mark every notification read
//	@Tags			notifications
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Security		BearerAuth
//	@Router			/me/notifications/read-all [post]
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.syncResponse(w, h.engine.MarkAllAsRead(r.Context()))
}

// DeleteNotification handles DELETE /me/notifications/{id}.
//
//	@Summary		Remove a notification locally
//	@Tags			notifications
//	@Param			id	path	string	true	"Notification id"
//	@Success		204	"Deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/me/notifications/{id} [delete]
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Delete(pathParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSession handles POST /me/session.
//
//	@Summary		Switch the signed-in user
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SessionRequest	true	"User id, empty to sign out"
//	@Success		200		{object}	SyncResponse
//	@Security		BearerAuth
//	@Router			/me/session [post]
func (h *Handler) SetSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.syncResponse(w, h.engine.SetUser(r.Context(), req.UserID))
}

// GetProfile handles GET /me/profile.
//
//	@Summary		Current profile
//	@Tags			profile
//	@Produce		json
//	@Success		200	{object}	models.UserProfile
//	@Security		BearerAuth
//	@Router			/me/profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.profiles.Profile())
}

// PatchProfile handles PATCH /me/profile. A persist failure is logged; the
// in-memory profile and its broadcast are already applied.
//
//	@Summary		Merge a partial profile update
//	@Tags			profile
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.ProfilePatch	true	"Fields to change"
//	@Success		200		{object}	models.UserProfile
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/me/profile [patch]
func (h *Handler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := h.profiles.Update(patch); err != nil {
		slog.Warn("profile update not persisted", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, h.profiles.Profile())
}

// ImproveSkill handles POST /me/profile/skills/{name}/improve.
//
//	@Summary		Raise a skill level
//	@Tags			profile
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string				true	"Skill name"
//	@Param			body	body		ImproveSkillRequest	true	"Points"
//	@Success		200		{object}	models.UserProfile
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/me/profile/skills/{name}/improve [post]
func (h *Handler) ImproveSkill(w http.ResponseWriter, r *http.Request) {
	var req ImproveSkillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	name := strings.TrimSpace(pathParam(r, "name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("skill name is required"))
		return
	}
	if err := h.profiles.ImproveSkill(name, req.Points); err != nil {
		slog.Warn("improve skill not persisted", slog.String("skill", name), slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, h.profiles.Profile())
}

// ListJobs handles GET /jobs.
//
//	@Summary		Jobs catalog
//	@Tags			jobs
//	@Produce		json
//	@Success		200	{object}	JobListResponse
//	@Security		BearerAuth
//	@Router			/jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.Jobs()
	if jobs == nil {
		jobs = []models.Job{}
	}
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs})
}

// PublishCommunity handles POST /community/events.
//
//	@Summary		Publish a community event
//	@Tags			events
//	@Accept			json
//	@Param			body	body	EventRequest	true	"Tagged event"
//	@Success		202		"Published"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/community/events [post]
func PublishCommunity(w http.ResponseWriter, r *http.Request) {
	publishTagged(w, r, func(h *events.Hub) *events.DomainBus { return h.Community })
}

// PublishSystem handles POST /system/events.
//
//	@Summary		Publish a system event
//	@Tags			events
//	@Accept			json
//	@Param			body	body	EventRequest	true	"Tagged event"
//	@Success		202		"Published"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/system/events [post]
func PublishSystem(w http.ResponseWriter, r *http.Request) {
	publishTagged(w, r, func(h *events.Hub) *events.DomainBus { return h.System })
}

func publishTagged(w http.ResponseWriter, r *http.Request, pick func(*events.Hub) *events.DomainBus) {
	var req EventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	hub, err := events.FromContext(r.Context())
	if err != nil {
		slog.Error("publish event failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if err := pick(hub).PublishJSON(req.Type, req.Payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// OpenChat handles POST /messages/open.
//
//	@Summary		Ask the messaging surface to open a conversation
//	@Tags			events
//	@Accept			json
//	@Param			body	body	OpenChatRequest	true	"Chat target"
//	@Success		202		"Published"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/messages/open [post]
func OpenChat(w http.ResponseWriter, r *http.Request) {
	var req OpenChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	hub, err := events.FromContext(r.Context())
	if err != nil {
		slog.Error("open chat failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	ev := events.OpenChat{UserID: req.UserID, Name: req.Name, Avatar: req.Avatar, Message: req.Message}
	if err := hub.DirectMessage.Publish(ev.Envelope()); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
