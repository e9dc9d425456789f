package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/repository"
	"github.com/Amina2304/MedTrack/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContactService owns emergency contact CRUD.
type ContactService struct {
	repo      *repository.ContactRepository
	notifRepo *repository.NotificationRepository
}

func NewContactService(repo *repository.ContactRepository, notifRepo *repository.NotificationRepository) *ContactService {
	return &ContactService{repo: repo, notifRepo: notifRepo}
}

// CreateContact stores a new emergency contact and notifies the user that
// the contact list changed.
func (s *ContactService) CreateContact(ctx context.Context, contact *models.EmergencyContact) (*models.EmergencyContact, error) {
	if contact.Name == "" || contact.Phone == "" {
		return nil, fmt.Errorf("contact requires a name and phone number")
	}
	created, err := s.repo.CreateContact(ctx, contact)
	if err != nil {
		return nil, err
	}
	s.notifyChange(ctx, created.UserID, fmt.Sprintf("%s was added to your emergency contacts.", created.Name))
	return created, nil
}

// GetUserContacts returns the user's emergency contacts.
func (s *ContactService) GetUserContacts(ctx context.Context, userID primitive.ObjectID) ([]models.EmergencyContact, error) {
	return s.repo.GetUserContacts(ctx, userID)
}

// UpdateContact saves contact edits, enforcing ownership.
func (s *ContactService) UpdateContact(ctx context.Context, id, userID primitive.ObjectID, contact *models.EmergencyContact) (*models.EmergencyContact, error) {
	existing, err := s.repo.GetContactByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != userID {
		return nil, fmt.Errorf("contact does not belong to user")
	}

	contact.ID = id
	contact.UserID = userID
	contact.CreatedAt = existing.CreatedAt
	updated, err := s.repo.UpdateContact(ctx, id, contact)
	if err != nil {
		return nil, err
	}
	s.notifyChange(ctx, userID, fmt.Sprintf("Emergency contact %s was updated.", updated.Name))
	return updated, nil
}

// DeleteContact removes a contact, enforcing ownership.
func (s *ContactService) DeleteContact(ctx context.Context, id, userID primitive.ObjectID) error {
	existing, err := s.repo.GetContactByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return fmt.Errorf("contact does not belong to user")
	}
	return s.repo.DeleteContact(ctx, id)
}

func (s *ContactService) notifyChange(ctx context.Context, userID primitive.ObjectID, message string) {
	expires := time.Now().Add(24 * time.Hour)
	notif := &models.Notification{
		UserID:       userID,
		Type:         models.TypeContactUpdate,
		Title:        "Emergency Contacts Updated",
		Message:      message,
		Priority:     models.PriorityLow,
		Status:       models.StatusPending,
		ScheduledFor: time.Now(),
		ExpiresAt:    &expires,
	}
	if _, err := s.notifRepo.Insert(ctx, notif); err != nil {
		logger.Log.WithError(err).Warn("Failed to create contact update notification")
	}
}
