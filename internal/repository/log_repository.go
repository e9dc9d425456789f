package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LogRepository handles database operations on medication logs.
type LogRepository struct {
	collection *mongo.Collection
}

// NewLogRepository creates a new instance of LogRepository.
func NewLogRepository(db *mongo.Database) *LogRepository {
	return &LogRepository{
		collection: db.Collection("medication_logs"),
	}
}

// FindByDoseKey returns the log row for a dose key, or nil when the dose has
// never been acted upon.
func (r *LogRepository) FindByDoseKey(ctx context.Context, key models.DoseKey) (*models.MedicationLog, error) {
	filter := bson.M{
		"medication_id":  key.MedicationID,
		"scheduled_time": key.ScheduledTime,
		"date":           key.Date,
	}

	var entry models.MedicationLog
	err := r.collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch medication log: %w", err)
	}
	return &entry, nil
}

// Upsert writes the resolution for a dose key: the first action inserts the
// row, later actions update it in place. The document update is the
// atomicity boundary; at most one active log exists per dose key.
func (r *LogRepository) Upsert(ctx context.Context, entry *models.MedicationLog) (*models.MedicationLog, error) {
	now := time.Now()
	filter := bson.M{
		"medication_id":  entry.MedicationID,
		"scheduled_time": entry.ScheduledTime,
		"date":           entry.Date,
	}
	update := bson.M{
		"$set": bson.M{
			"taken":      entry.Taken,
			"dismissed":  entry.Dismissed,
			"taken_at":   entry.TakenAt,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":        entry.UserID,
			"medication_id":  entry.MedicationID,
			"scheduled_time": entry.ScheduledTime,
			"date":           entry.Date,
			"created_at":     now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved models.MedicationLog
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		logger.Log.WithError(err).WithField("dose_key", entry.Key().String()).Error("Failed to upsert medication log")
		return nil, fmt.Errorf("failed to upsert medication log: %w", err)
	}
	return &saved, nil
}

// GetUserLogs returns a user's logs between two calendar days, newest first.
func (r *LogRepository) GetUserLogs(ctx context.Context, userID primitive.ObjectID, from, to string) ([]models.MedicationLog, error) {
	filter := bson.M{
		"user_id": userID,
		"date":    bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "scheduled_time", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch medication logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []models.MedicationLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode medication logs: %w", err)
	}
	return logs, nil
}

// CountResolvedSince returns taken and total counts for a user's logs on or
// after the given day. Used for the weekly progress report.
func (r *LogRepository) CountResolvedSince(ctx context.Context, userID primitive.ObjectID, from string) (taken int64, total int64, err error) {
	total, err = r.collection.CountDocuments(ctx, bson.M{"user_id": userID, "date": bson.M{"$gte": from}})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count medication logs: %w", err)
	}
	taken, err = r.collection.CountDocuments(ctx, bson.M{"user_id": userID, "date": bson.M{"$gte": from}, "taken": true})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count taken logs: %w", err)
	}
	return taken, total, nil
}

// DeleteByMedication removes all logs of a medication. Only called when the
// user opted into log deletion on medication removal.
func (r *LogRepository) DeleteByMedication(ctx context.Context, medicationID primitive.ObjectID) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"medication_id": medicationID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete medication logs: %w", err)
	}
	return result.DeletedCount, nil
}
