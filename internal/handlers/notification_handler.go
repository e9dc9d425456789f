package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Amina2304/MedTrack/internal/services"
	"github.com/Amina2304/MedTrack/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationHandler handles HTTP requests related to notifications.
type NotificationHandler struct {
	Service *services.NotificationService
}

// NewNotificationHandler creates a new instance of NotificationHandler.
func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: service}
}

// GetNotificationsHandler returns the user's notification feed.
func (h *NotificationHandler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	notifications, err := h.Service.GetUserNotifications(r.Context(), userID, limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch notifications")
		http.Error(w, "Failed to fetch notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notifications)
}

// MarkReadHandler marks a notification as read.
func (h *NotificationHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.MarkNotificationRead, "read")
}

// DismissHandler dismisses a notification.
func (h *NotificationHandler) DismissHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.DismissNotification, "dismissed")
}

func (h *NotificationHandler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, userID primitive.ObjectID) error, verb string) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	notifID, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		http.Error(w, "Invalid notification ID", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}

	if err := op(r.Context(), notifID, userID); err != nil {
		logrus.WithFields(logrus.Fields{
			"notificationID": vars["id"],
			"error":          err,
		}).Warn("Notification transition failed")
		http.Error(w, "Notification not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": verb})
}

// ClearNotificationsHandler removes all of the user's notifications.
func (h *NotificationHandler) ClearNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}

	deleted, err := h.Service.ClearNotifications(r.Context(), userID)
	if err != nil {
		logrus.WithError(err).Error("Failed to clear notifications")
		http.Error(w, "Failed to clear notifications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"deleted": deleted})
}
