package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/services"
	"github.com/Amina2304/MedTrack/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MedicationHandler handles HTTP requests related to medications.
type MedicationHandler struct {
	Service *services.MedicationService
}

// NewMedicationHandler creates a new instance of MedicationHandler.
func NewMedicationHandler(service *services.MedicationService) *MedicationHandler {
	return &MedicationHandler{Service: service}
}

// CreateMedicationHandler handles the creation of a new medication.
func (h *MedicationHandler) CreateMedicationHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		logrus.Warn("Unauthorized access attempt during medication creation")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var med models.Medication
	if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
		logrus.WithError(err).Warn("Invalid request payload during medication creation")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		logrus.WithError(err).Error("Failed to convert user ID")
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}
	med.UserID = userID

	createdMed, err := h.Service.CreateMedication(r.Context(), &med)
	if err != nil {
		logrus.WithError(err).Warn("Failed to create medication")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logrus.WithFields(logrus.Fields{
		"userID":       claims.UserID,
		"medicationID": createdMed.ID.Hex(),
	}).Info("Medication created")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(createdMed)
}

// GetMedicationHandler handles fetching a single medication by its ID.
func (h *MedicationHandler) GetMedicationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	medID := vars["id"]

	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	objID, err := primitive.ObjectIDFromHex(medID)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}

	med, err := h.Service.GetMedication(r.Context(), objID, userID)
	if err != nil {
		logrus.WithField("medicationID", medID).WithError(err).Warn("Medication not found")
		http.Error(w, "Medication not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(med)
}

// GetMedicationsHandler returns all medications of the logged-in user.
func (h *MedicationHandler) GetMedicationsHandler(w http.ResponseWriter, r *http.Request) {
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

	meds, err := h.Service.GetUserMedications(r.Context(), userID)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch medications")
		http.Error(w, "Failed to fetch medications", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meds)
}

// UpdateMedicationHandler updates a medication and rebuilds today's pending
// reminders from the new schedule.
func (h *MedicationHandler) UpdateMedicationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	medID := vars["id"]

	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var med models.Medication
	if err := json.NewDecoder(r.Body).Decode(&med); err != nil {
		logrus.WithError(err).Warn("Invalid request payload during medication update")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	objID, err := primitive.ObjectIDFromHex(medID)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}

	updatedMed, err := h.Service.UpdateMedication(r.Context(), objID, userID, &med)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"medicationID": medID,
			"error":        err,
		}).Warn("Failed to update medication")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logrus.WithField("medicationID", medID).Info("Medication updated")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updatedMed)
}

// DeleteMedicationHandler deletes a medication together with its pending
// reminders.
func (h *MedicationHandler) DeleteMedicationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	medID := vars["id"]

	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	objID, err := primitive.ObjectIDFromHex(medID)
	if err != nil {
		http.Error(w, "Invalid medication ID", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}

	if err := h.Service.DeleteMedication(r.Context(), objID, userID); err != nil {
		logrus.WithField("medicationID", medID).WithError(err).Warn("Failed to delete medication")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logrus.WithField("medicationID", medID).Info("Medication deleted")
	w.WriteHeader(http.StatusNoContent)
}
