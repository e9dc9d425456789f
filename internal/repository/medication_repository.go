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

// MedicationRepository handles database operations on medications.
type MedicationRepository struct {
	collection *mongo.Collection
}

// NewMedicationRepository creates a new instance of MedicationRepository.
func NewMedicationRepository(db *mongo.Database) *MedicationRepository {
	return &MedicationRepository{
		collection: db.Collection("medications"),
	}
}

// CreateMedication inserts a new medication.
func (r *MedicationRepository) CreateMedication(ctx context.Context, med *models.Medication) (*models.Medication, error) {
	med.CreatedAt = time.Now()
	med.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, med)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert medication")
		return nil, fmt.Errorf("failed to create medication: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted id type")
	}
	med.ID = id

	logger.Log.WithField("medication_id", med.ID.Hex()).Info("Medication created")
	return med, nil
}

// GetMedicationByID fetches a medication by its id.
func (r *MedicationRepository) GetMedicationByID(ctx context.Context, id primitive.ObjectID) (*models.Medication, error) {
	var med models.Medication
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&med); err != nil {
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}
	return &med, nil
}

// GetUserMedications returns all medications of a user.
func (r *MedicationRepository) GetUserMedications(ctx context.Context, userID primitive.ObjectID) ([]models.Medication, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch medications: %w", err)
	}
	defer cursor.Close(ctx)

	var meds []models.Medication
	if err := cursor.All(ctx, &meds); err != nil {
		return nil, fmt.Errorf("failed to decode medications: %w", err)
	}
	return meds, nil
}

// GetAllMedications returns every medication, for the authoritative batch
// cycle.
func (r *MedicationRepository) GetAllMedications(ctx context.Context) ([]models.Medication, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch medications: %w", err)
	}
	defer cursor.Close(ctx)

	var meds []models.Medication
	if err := cursor.All(ctx, &meds); err != nil {
		return nil, fmt.Errorf("failed to decode medications: %w", err)
	}
	return meds, nil
}

// UpdateMedication updates a medication in place.
func (r *MedicationRepository) UpdateMedication(ctx context.Context, id primitive.ObjectID, med *models.Medication) (*models.Medication, error) {
	med.UpdatedAt = time.Now()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": med})
	if err != nil {
		logger.Log.WithError(err).WithField("medication_id", id.Hex()).Error("Failed to update medication")
		return nil, fmt.Errorf("failed to update medication: %w", err)
	}
	return med, nil
}

// DecrementSupply atomically reduces the remaining supply by one, never
// below zero.
func (r *MedicationRepository) DecrementSupply(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "supply": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"supply": -1}, "$set": bson.M{"updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to decrement supply: %w", err)
	}
	return nil
}

// DeleteMedication removes a medication.
func (r *MedicationRepository) DeleteMedication(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		logger.Log.WithError(err).WithField("medication_id", id.Hex()).Error("Failed to delete medication")
		return fmt.Errorf("failed to delete medication: %w", err)
	}
	return nil
}
