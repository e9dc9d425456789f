package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/services"
	"github.com/Amina2304/MedTrack/pkg/middleware"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsHandler handles the user's notification preferences.
type SettingsHandler struct {
	Service *services.SettingsService
}

// NewSettingsHandler creates a new instance of SettingsHandler.
func NewSettingsHandler(service *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{Service: service}
}

// GetSettingsHandler returns the user's notification settings, falling back
// to defaults when none are saved yet.
func (h *SettingsHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
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

	settings, err := h.Service.GetSettings(r.Context(), userID)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch notification settings")
		http.Error(w, "Failed to fetch settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

// UpdateSettingsHandler replaces the user's notification settings. Changes
// apply to the next dispatch cycle; already-sent notifications are not
// recalled.
func (h *SettingsHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
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

	var settings models.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		logrus.WithError(err).Warn("Invalid settings payload")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	updated, err := h.Service.UpdateSettings(r.Context(), userID, &settings)
	if err != nil {
		logrus.WithError(err).Warn("Failed to update notification settings")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logrus.WithField("userID", claims.UserID).Info("Notification settings updated")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}
