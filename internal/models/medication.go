package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Medication represents a medication a user is tracking, together with its
// daily dose schedule ("HH:MM" strings) and supply information.
type Medication struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID             primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name               string             `bson:"name" json:"name"`
	Dosage             string             `bson:"dosage" json:"dosage"` // e.g. "100mg"
	Times              []string           `bson:"times" json:"times"`   // e.g. ["09:00", "21:00"]
	Frequency          string             `bson:"frequency" json:"frequency"`
	Notes              string             `bson:"notes,omitempty" json:"notes,omitempty"`
	StartDate          time.Time          `bson:"start_date" json:"start_date"`
	EndDate            *time.Time         `bson:"end_date,omitempty" json:"end_date,omitempty"`
	Supply             int                `bson:"supply" json:"supply"` // remaining doses; 0 means not tracked
	LowSupplyThreshold int                `bson:"low_supply_threshold" json:"low_supply_threshold"`
	DeleteLogsOnRemove bool               `bson:"delete_logs_on_remove" json:"delete_logs_on_remove"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the medication schedule covers the given day.
func (m *Medication) Active(day time.Time) bool {
	if !m.StartDate.IsZero() && day.Before(m.StartDate) && day.Format(DateLayout) != m.StartDate.Format(DateLayout) {
		return false
	}
	if m.EndDate != nil && day.After(*m.EndDate) && day.Format(DateLayout) != m.EndDate.Format(DateLayout) {
		return false
	}
	return true
}

// TracksSupply reports whether supply counting is enabled for the medication.
func (m *Medication) TracksSupply() bool {
	return m.Supply > 0 || m.LowSupplyThreshold > 0
}
