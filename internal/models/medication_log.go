package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateLayout is the calendar-day format used in dose keys and log rows.
const DateLayout = "2006-01-02"

// TimeLayout is the wall-clock format used for dose times ("HH:MM").
const TimeLayout = "15:04"

// DoseKey identifies a single dose of a medication on a calendar day. It is
// the unit of idempotency: locking, suppression and escalation are all keyed
// by it, never by notification id.
type DoseKey struct {
	MedicationID  primitive.ObjectID `bson:"medication_id" json:"medication_id"`
	ScheduledTime string             `bson:"scheduled_time" json:"scheduled_time"` // "HH:MM"
	Date          string             `bson:"date" json:"date"`                     // "YYYY-MM-DD"
}

// NewDoseKey builds the key for a medication dose on the given day.
func NewDoseKey(medicationID primitive.ObjectID, scheduledTime string, day time.Time) DoseKey {
	return DoseKey{
		MedicationID:  medicationID,
		ScheduledTime: scheduledTime,
		Date:          day.Format(DateLayout),
	}
}

// String returns a stable registry key for maps and log lines.
func (k DoseKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.MedicationID.Hex(), k.ScheduledTime, k.Date)
}

// ScheduledAt resolves the key's wall-clock dose moment in the given location.
func (k DoseKey) ScheduledAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, k.Date+" "+k.ScheduledTime, loc)
}

// MedicationLog records the user's action (or pending lack of one) for a
// single dose. At most one log exists per DoseKey; a second action for an
// already-resolved key is an update, not an insert.
type MedicationLog struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	MedicationID  primitive.ObjectID `bson:"medication_id" json:"medication_id"`
	ScheduledTime string             `bson:"scheduled_time" json:"scheduled_time"`
	Date          string             `bson:"date" json:"date"`
	Taken         bool               `bson:"taken" json:"taken"`
	Dismissed     bool               `bson:"dismissed" json:"dismissed"`
	TakenAt       *time.Time         `bson:"taken_at,omitempty" json:"taken_at,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// Key returns the DoseKey the log row belongs to.
func (l *MedicationLog) Key() DoseKey {
	return DoseKey{MedicationID: l.MedicationID, ScheduledTime: l.ScheduledTime, Date: l.Date}
}

// Resolved reports whether the dose has been acted upon (taken or dismissed).
func (l *MedicationLog) Resolved() bool {
	return l != nil && (l.Taken || l.Dismissed)
}
