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

// ContactHandler handles HTTP requests related to emergency contacts.
type ContactHandler struct {
	Service *services.ContactService
}

// NewContactHandler creates a new instance of ContactHandler.
func NewContactHandler(service *services.ContactService) *ContactHandler {
	return &ContactHandler{Service: service}
}

// CreateContactHandler adds an emergency contact for the logged-in user.
func (h *ContactHandler) CreateContactHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var contact models.EmergencyContact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		logrus.WithError(err).Warn("Invalid contact payload")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}
	contact.UserID = userID

	created, err := h.Service.CreateContact(r.Context(), &contact)
	if err != nil {
		logrus.WithError(err).Warn("Failed to create contact")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logrus.WithFields(logrus.Fields{
		"userID":    claims.UserID,
		"contactID": created.ID.Hex(),
	}).Info("Emergency contact created")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(created)
}

// GetContactsHandler lists the user's emergency contacts.
func (h *ContactHandler) GetContactsHandler(w http.ResponseWriter, r *http.Request) {
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

	contacts, err := h.Service.GetUserContacts(r.Context(), userID)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch contacts")
		http.Error(w, "Failed to fetch contacts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contacts)
}

// UpdateContactHandler updates an emergency contact.
func (h *ContactHandler) UpdateContactHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	contactID := vars["id"]

	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var contact models.EmergencyContact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		logrus.WithError(err).Warn("Invalid contact payload")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	objID, err := primitive.ObjectIDFromHex(contactID)
	if err != nil {
		http.Error(w, "Invalid contact ID", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}

	updated, err := h.Service.UpdateContact(r.Context(), objID, userID, &contact)
	if err != nil {
		logrus.WithField("contactID", contactID).WithError(err).Warn("Failed to update contact")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// DeleteContactHandler removes an emergency contact.
func (h *ContactHandler) DeleteContactHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	contactID := vars["id"]

	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	objID, err := primitive.ObjectIDFromHex(contactID)
	if err != nil {
		http.Error(w, "Invalid contact ID", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusInternalServerError)
		return
	}

	if err := h.Service.DeleteContact(r.Context(), objID, userID); err != nil {
		logrus.WithField("contactID", contactID).WithError(err).Warn("Failed to delete contact")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logrus.WithField("contactID", contactID).Info("Emergency contact deleted")
	w.WriteHeader(http.StatusNoContent)
}
