package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ContactRepository handles database operations on emergency contacts.
type ContactRepository struct {
	collection *mongo.Collection
}

// NewContactRepository creates a new instance of ContactRepository.
func NewContactRepository(db *mongo.Database) *ContactRepository {
	return &ContactRepository{
		collection: db.Collection("emergency_contacts"),
	}
}

// CreateContact inserts a new emergency contact.
func (r *ContactRepository) CreateContact(ctx context.Context, contact *models.EmergencyContact) (*models.EmergencyContact, error) {
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, contact)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert emergency contact")
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted id type")
	}
	contact.ID = id
	return contact, nil
}

// GetContactByID fetches a contact by its id.
func (r *ContactRepository) GetContactByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencyContact, error) {
	var contact models.EmergencyContact
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&contact); err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	return &contact, nil
}

// GetUserContacts returns all emergency contacts of a user.
func (r *ContactRepository) GetUserContacts(ctx context.Context, userID primitive.ObjectID) ([]models.EmergencyContact, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}
	defer cursor.Close(ctx)

	var contacts []models.EmergencyContact
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return contacts, nil
}

// GetAlertableContacts returns the user's contacts flagged for missed-dose
// alerts that carry an email address.
func (r *ContactRepository) GetAlertableContacts(ctx context.Context, userID primitive.ObjectID) ([]models.EmergencyContact, error) {
	filter := bson.M{
		"user_id":              userID,
		"alert_on_missed_dose": true,
		"email":                bson.M{"$ne": ""},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alertable contacts: %w", err)
	}
	defer cursor.Close(ctx)

	var contacts []models.EmergencyContact
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode alertable contacts: %w", err)
	}
	return contacts, nil
}

// UpdateContact updates a contact in place.
func (r *ContactRepository) UpdateContact(ctx context.Context, id primitive.ObjectID, contact *models.EmergencyContact) (*models.EmergencyContact, error) {
	contact.UpdatedAt = time.Now()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": contact})
	if err != nil {
		logger.Log.WithError(err).WithField("contact_id", id.Hex()).Error("Failed to update contact")
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return contact, nil
}

// DeleteContact removes a contact.
func (r *ContactRepository) DeleteContact(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return nil
}
