package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/reminder"
	"github.com/Amina2304/MedTrack/internal/services"
	"github.com/Amina2304/MedTrack/pkg/middleware"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LogHandler handles medication log queries and the dose actions ("I took
// it" / "skip this dose").
type LogHandler struct {
	Service *services.LogService
}

// NewLogHandler creates a new instance of LogHandler.
func NewLogHandler(service *services.LogService) *LogHandler {
	return &LogHandler{Service: service}
}

// doseActionRequest identifies the dose being resolved. Date defaults to
// today when omitted.
type doseActionRequest struct {
	MedicationID  string `json:"medicationId"`
	ScheduledTime string `json:"scheduledTime"`
	Date          string `json:"date,omitempty"`
}

// GetLogsHandler returns the user's logs between ?from and ?to (calendar
// days, inclusive; defaults to the last week).
func (h *LogHandler) GetLogsHandler(w http.ResponseWriter, r *http.Request) {
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

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	logs, err := h.Service.GetUserLogs(r.Context(), userID, from, to)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch medication logs")
		http.Error(w, "Failed to fetch logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

// MarkTakenHandler records a dose as taken.
func (h *LogHandler) MarkTakenHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveDose(w, r, true)
}

// MarkDismissedHandler records a dose as deliberately skipped.
func (h *LogHandler) MarkDismissedHandler(w http.ResponseWriter, r *http.Request) {
	h.resolveDose(w, r, false)
}

func (h *LogHandler) resolveDose(w http.ResponseWriter, r *http.Request, taken bool) {
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

	var req doseActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logrus.WithError(err).Warn("Invalid dose action payload")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	medID, err := primitive.ObjectIDFromHex(req.MedicationID)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	key := models.DoseKey{
		MedicationID:  medID,
		ScheduledTime: req.ScheduledTime,
		Date:          req.Date,
	}

	var outcome *reminder.Outcome
	if taken {
		outcome, err = h.Service.MarkTaken(r.Context(), userID, key)
	} else {
		outcome, err = h.Service.MarkDismissed(r.Context(), userID, key)
	}
	if err != nil {
		if errors.Is(err, reminder.ErrActionInProgress) {
			http.Error(w, "Action already in progress", http.StatusConflict)
			return
		}
		logrus.WithFields(logrus.Fields{
			"userID": claims.UserID,
			"dose":   key.String(),
			"error":  err,
		}).Warn("Failed to resolve dose")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	message := "recorded"
	if outcome.Already {
		message = "already recorded"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": message,
		"log":     outcome.Log,
	})
}
