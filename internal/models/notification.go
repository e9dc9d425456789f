package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types.
const (
	TypeDoseReminder       = "dose_reminder"
	TypeDoseOverdue        = "dose_overdue"
	TypeHealthTip          = "health_tip"
	TypeProgressReport     = "progress_report"
	TypeAppointment        = "appointment_reminder"
	TypeLowSupply          = "low_supply"
	TypeContactUpdate      = "contact_update"
	TypeSystemAnnouncement = "system_announcement"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification statuses. A PENDING record becomes SENT once dispatched and
// ends as READ or DISMISSED through user actions; FAILED marks a display
// error and is requeued by the cleanup job.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusRead      = "read"
	StatusDismissed = "dismissed"
	StatusFailed    = "failed"
)

// Payload keys carried in Notification.Data by dose-related notifications.
const (
	DataMedicationID   = "medicationId"
	DataScheduledTime  = "scheduledTime"
	DataDate           = "date"
	DataOffsetMinutes  = "offsetMinutes"
	DataIsOverdue      = "isOverdue"
	DataMinutesOverdue = "minutesOverdue"
	DataReminderCount  = "reminderCount"
)

// Notification is a scheduled or delivered alert for a user. ScheduledFor is
// the instant after which delivery is permitted; SentAt is set exactly when
// the record leaves PENDING through the dispatcher.
type Notification struct {
	ID           primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID     `bson:"user_id" json:"user_id"`
	Type         string                 `bson:"type" json:"type"`
	Title        string                 `bson:"title" json:"title"`
	Message      string                 `bson:"message" json:"message"`
	Data         map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	Priority     string                 `bson:"priority" json:"priority"`
	Status       string                 `bson:"status" json:"status"`
	ScheduledFor time.Time              `bson:"scheduled_for" json:"scheduled_for"`
	SentAt       *time.Time             `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
	ReadAt       *time.Time             `bson:"read_at,omitempty" json:"read_at,omitempty"`
	ExpiresAt    *time.Time             `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedAt    time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time              `bson:"updated_at" json:"updated_at"`
}

// IsOverdue reports whether the notification is an overdue escalation. The
// overdue-alerts switch is honored independently of the base reminder
// switch, so the flag travels in the payload as well as the type.
func (n *Notification) IsOverdue() bool {
	if n.Type == TypeDoseOverdue {
		return true
	}
	if n.Data == nil {
		return false
	}
	overdue, ok := n.Data[DataIsOverdue].(bool)
	return ok && overdue
}

// DoseRelated reports whether the notification references a dose.
func (n *Notification) DoseRelated() bool {
	return n.Type == TypeDoseReminder || n.Type == TypeDoseOverdue
}

// DoseKey extracts the dose identity from the payload. The second return is
// false for notifications that do not carry one.
func (n *Notification) DoseKey() (DoseKey, bool) {
	if n.Data == nil {
		return DoseKey{}, false
	}
	rawID, ok := n.Data[DataMedicationID].(string)
	if !ok {
		return DoseKey{}, false
	}
	medID, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		return DoseKey{}, false
	}
	scheduled, ok := n.Data[DataScheduledTime].(string)
	if !ok {
		return DoseKey{}, false
	}
	date, ok := n.Data[DataDate].(string)
	if !ok {
		return DoseKey{}, false
	}
	return DoseKey{MedicationID: medID, ScheduledTime: scheduled, Date: date}, true
}

// Expired reports whether the record may no longer be delivered.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !now.Before(*n.ExpiresAt)
}
