package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SettingsRepository handles database operations on notification settings.
type SettingsRepository struct {
	collection *mongo.Collection
}

// NewSettingsRepository creates a new instance of SettingsRepository.
func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{
		collection: db.Collection("notification_settings"),
	}
}

// GetByUser returns the user's settings, or nil when none were ever saved.
func (r *SettingsRepository) GetByUser(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error) {
	var settings models.NotificationSettings
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch notification settings: %w", err)
	}
	return &settings, nil
}

// Upsert saves the user's settings, creating the document on first save.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.NotificationSettings) (*models.NotificationSettings, error) {
	now := time.Now()
	settings.UpdatedAt = now

	update := bson.M{
		"$set": bson.M{
			"notifications_enabled": settings.NotificationsEnabled,
			"medication_reminders":  settings.MedicationReminders,
			"health_tips":           settings.HealthTips,
			"progress_reports":      settings.ProgressReports,
			"overdue_alerts":        settings.OverdueAlerts,
			"sound":                 settings.Sound,
			"vibration":             settings.Vibration,
			"lock_screen":           settings.LockScreen,
			"quiet_hours":           settings.QuietHours,
			"timezone":              settings.Timezone,
			"updated_at":            now,
		},
		"$setOnInsert": bson.M{
			"user_id":    settings.UserID,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved models.NotificationSettings
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"user_id": settings.UserID}, update, opts).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to save notification settings: %w", err)
	}
	return &saved, nil
}
