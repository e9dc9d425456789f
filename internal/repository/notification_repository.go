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

// NotificationRepository handles database operations on notifications.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection("notifications"),
	}
}

// Insert persists a new notification and returns its id.
func (r *NotificationRepository) Insert(ctx context.Context, notif *models.Notification) (primitive.ObjectID, error) {
	now := time.Now()
	notif.CreatedAt = now
	notif.UpdatedAt = now
	if notif.Status == "" {
		notif.Status = models.StatusPending
	}

	result, err := r.collection.InsertOne(ctx, notif)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert notification")
		return primitive.NilObjectID, fmt.Errorf("failed to create notification: %w", err)
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type")
	}
	notif.ID = id
	return id, nil
}

// FindDue returns PENDING notifications whose delivery window is open:
// scheduled_for has passed and expires_at (if set) has not.
func (r *NotificationRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	filter := bson.M{
		"status":        models.StatusPending,
		"scheduled_for": bson.M{"$lte": now},
		"$or": []bson.M{
			{"expires_at": bson.M{"$exists": false}},
			{"expires_at": nil},
			{"expires_at": bson.M{"$gt": now}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "scheduled_for", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode due notifications: %w", err)
	}
	return notifications, nil
}

// FindScheduledDose returns pending or sent dose notifications matching the
// (medication, scheduled time, offset, day) slot. Used by the planner to
// keep re-planning idempotent.
func (r *NotificationRepository) FindScheduledDose(ctx context.Context, medicationID primitive.ObjectID, scheduledTime string, offsetMinutes int, date string) ([]models.Notification, error) {
	filter := bson.M{
		"type":                     models.TypeDoseReminder,
		"status":                   bson.M{"$in": []string{models.StatusPending, models.StatusSent}},
		"data." + models.DataMedicationID:  medicationID.Hex(),
		"data." + models.DataScheduledTime: scheduledTime,
		"data." + models.DataOffsetMinutes: offsetMinutes,
		"data." + models.DataDate:          date,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scheduled dose notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode scheduled dose notifications: %w", err)
	}
	return notifications, nil
}

// MarkSentIfPending atomically claims a PENDING notification for delivery.
// Returns false when another process already moved it out of PENDING.
func (r *NotificationRepository) MarkSentIfPending(ctx context.Context, id primitive.ObjectID, sentAt time.Time) (bool, error) {
	res := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "status": models.StatusPending},
		bson.M{"$set": bson.M{
			"status":     models.StatusSent,
			"sent_at":    sentAt,
			"updated_at": sentAt,
		}},
	)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		logger.Log.WithError(err).WithField("notification_id", id.Hex()).Error("Failed to claim notification")
		return false, fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return true, nil
}

// MarkFailed records a display failure. The cleanup job requeues FAILED
// records that are still within their delivery window.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":   bson.M{"status": models.StatusFailed, "updated_at": time.Now()},
			"$unset": bson.M{"sent_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// CountOverdueForDose returns how many overdue escalations were ever created
// for a dose key. Keeps the escalation cap durable across restarts.
func (r *NotificationRepository) CountOverdueForDose(ctx context.Context, key models.DoseKey) (int64, error) {
	filter := bson.M{
		"type": models.TypeDoseOverdue,
		"data." + models.DataMedicationID:  key.MedicationID.Hex(),
		"data." + models.DataScheduledTime: key.ScheduledTime,
		"data." + models.DataDate:          key.Date,
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue notifications: %w", err)
	}
	return count, nil
}

// RequeueFailed flips unexpired FAILED notifications back to PENDING so the
// next scan retries them. Returns the number requeued.
func (r *NotificationRepository) RequeueFailed(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"status": models.StatusFailed,
		"$or": []bson.M{
			{"expires_at": bson.M{"$exists": false}},
			{"expires_at": nil},
			{"expires_at": bson.M{"$gt": now}},
		},
	}
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"status":     models.StatusPending,
		"updated_at": now,
	}})
	if err != nil {
		return 0, fmt.Errorf("failed to requeue failed notifications: %w", err)
	}
	return result.ModifiedCount, nil
}

// MarkRead transitions a SENT notification to READ for its owner.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "user_id": userID, "status": models.StatusSent},
		bson.M{"$set": bson.M{"status": models.StatusRead, "read_at": now, "updated_at": now}},
	)
	return err
}

// MarkDismissed transitions a notification to DISMISSED for its owner.
func (r *NotificationRepository) MarkDismissed(ctx context.Context, id, userID primitive.ObjectID) error {
	now := time.Now()
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "user_id": userID, "status": bson.M{"$in": []string{models.StatusSent, models.StatusRead}}},
		bson.M{"$set": bson.M{"status": models.StatusDismissed, "updated_at": now}},
	)
	return err
}

// GetUserNotifications returns the user's unexpired notifications, newest
// first.
func (r *NotificationRepository) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	now := time.Now()
	filter := bson.M{
		"user_id": userID,
		"$or": []bson.M{
			{"expires_at": bson.M{"$exists": false}},
			{"expires_at": nil},
			{"expires_at": bson.M{"$gt": now}},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// GetLatestByType returns the newest notification of a type for a user, or
// nil when none exists. Used to dedupe tips, reports and low-supply alerts.
func (r *NotificationRepository) GetLatestByType(ctx context.Context, userID primitive.ObjectID, notifType string) (*models.Notification, error) {
	filter := bson.M{"user_id": userID, "type": notifType}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var notif models.Notification
	err := r.collection.FindOne(ctx, filter, opts).Decode(&notif)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &notif, nil
}

// DeletePendingForDose removes PENDING notifications referencing a dose key.
// Called before re-planning an edited schedule so no orphaned duplicates
// survive, and by the recorder once a dose is resolved.
func (r *NotificationRepository) DeletePendingForDose(ctx context.Context, key models.DoseKey) (int64, error) {
	filter := bson.M{
		"status": models.StatusPending,
		"data." + models.DataMedicationID:  key.MedicationID.Hex(),
		"data." + models.DataScheduledTime: key.ScheduledTime,
		"data." + models.DataDate:          key.Date,
	}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		logger.Log.WithError(err).WithField("dose_key", key.String()).Error("Failed to delete pending dose notifications")
		return 0, fmt.Errorf("failed to delete pending dose notifications: %w", err)
	}
	return result.DeletedCount, nil
}

// DeletePendingForMedication removes all PENDING notifications for a
// medication, regardless of slot.
func (r *NotificationRepository) DeletePendingForMedication(ctx context.Context, medicationID primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"status": models.StatusPending,
		"data." + models.DataMedicationID: medicationID.Hex(),
	}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending medication notifications: %w", err)
	}
	return result.DeletedCount, nil
}

// ClearForUser removes every notification belonging to a user (explicit
// bulk-clear).
func (r *NotificationRepository) ClearForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("failed to clear notifications: %w", err)
	}
	return result.DeletedCount, nil
}

// DeleteExpired removes notifications whose expires_at has passed. Expired
// PENDING records are never dispatched; this is the external cleanup that
// ages them out.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	logger.Log.Infof("Deleted %d expired notifications", result.DeletedCount)
	return result.DeletedCount, nil
}
