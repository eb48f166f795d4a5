package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/service"
	"github.com/pharmaflow/pharmaflow-backend/pkg/httputil"
	"github.com/pharmaflow/pharmaflow-backend/pkg/identity"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
)

// NotificationHandler handles stock alert endpoints
type NotificationHandler struct {
	service *service.Notifications
	logger  *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(svc *service.Notifications, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: svc,
		logger:  log,
	}
}

// List lists notifications for the calling pharmacy
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())

	filter := repository.NotificationFilter{
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Type:       repository.NotificationType(r.URL.Query().Get("type")),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}

	notifications, err := h.service.List(r.Context(), pharmacyID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, notifications)
}

// UnreadCount returns the number of unread notifications
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())

	count, err := h.service.CountUnread(r.Context(), pharmacyID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead marks one notification as read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.service.MarkRead(r.Context(), pharmacyID, id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// MarkAllRead marks every unread notification as read
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	pharmacyID := identity.MustPharmacyID(r.Context())

	updated, err := h.service.MarkAllRead(r.Context(), pharmacyID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
