package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/inbox"
)

// InboxHandler serves the notification API consumed by notify.Client.
type InboxHandler struct {
	svc *inbox.Service
}

// NewInboxHandler creates a new InboxHandler.
func NewInboxHandler(svc *inbox.Service) *InboxHandler {
	return &InboxHandler{svc: svc}
}

// List handles GET /notifications?user_id=.
//
//	@Summary		List a user's notifications
//	@Tags			inbox
//	@Produce		json
//	@Param			user_id	query		string	true	"User id"
//	@Success		200		{object}	NotificationListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notifications [get]
func (h *InboxHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'user_id' is required"))
		return
	}
	items, err := h.svc.List(r.Context(), userID)
	if err != nil {
		slog.Error("list inbox failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: items})
}

// Create handles POST /notifications.
//
//	@Summary		Deliver a notification to a user
//	@Tags			inbox
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InboxCreateRequest	true	"Notification"
//	@Success		201		{object}	models.Notification
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notifications [post]
func (h *InboxHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req InboxCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := h.svc.Create(r.Context(), req.UserID, req.notification())
	if err != nil {
		slog.Error("create inbox notification failed", slog.String("user_id", req.UserID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// MarkRead handles POST /notifications/{id}/read.
//
//	@Summary		Mark one notification read
//	@Tags			inbox
//	@Param			id	path	string	true	"Notification id"
//	@Success		204	"Marked"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notifications/{id}/read [post]
func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.svc.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("mark read failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
//
//	@Summary		Mark every notification of a user read
//	@Tags			inbox
//	@Accept			json
//	@Param			body	body	UserRequest	true	"User id"
//	@Success		204		"Marked"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notifications/read-all [post]
func (h *InboxHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.MarkAllRead(r.Context(), req.UserID); err != nil {
		slog.Error("mark all read failed", slog.String("user_id", req.UserID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
