// Package reminder implements the dose reminder engine: planning, policy
// gating, dispatch, overdue escalation, per-dose locking and idempotent
// dose recording. Storage, settings lookup and the display surface are
// consumed through the interfaces below; the Mongo repositories satisfy
// them directly.
package reminder

import (
	"context"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationStore is the slice of the notification repository the engine
// needs.
type NotificationStore interface {
	Insert(ctx context.Context, notif *models.Notification) (primitive.ObjectID, error)
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.Notification, error)
	FindScheduledDose(ctx context.Context, medicationID primitive.ObjectID, scheduledTime string, offsetMinutes int, date string) ([]models.Notification, error)
	MarkSentIfPending(ctx context.Context, id primitive.ObjectID, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id primitive.ObjectID) error
	CountOverdueForDose(ctx context.Context, key models.DoseKey) (int64, error)
	DeletePendingForDose(ctx context.Context, key models.DoseKey) (int64, error)
	DeletePendingForMedication(ctx context.Context, medicationID primitive.ObjectID) (int64, error)
}

// DoseLogStore reads and writes medication log rows by dose key.
type DoseLogStore interface {
	FindByDoseKey(ctx context.Context, key models.DoseKey) (*models.MedicationLog, error)
	Upsert(ctx context.Context, entry *models.MedicationLog) (*models.MedicationLog, error)
}

// SettingsSource resolves a user's notification settings with defaults
// already applied.
type SettingsSource interface {
	GetSettings(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error)
}

// Notifier is the fire-and-forget display capability. The engine assumes no
// delivery guarantee; a nil error only means the display attempt was handed
// off.
type Notifier interface {
	Display(ctx context.Context, notif *models.Notification) error
}
