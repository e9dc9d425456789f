package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmergencyContact is a person the user wants reachable from the app. When
// AlertOnMissedDose is set, an exhausted overdue escalation (all reminders
// sent, dose still unresolved) triggers an email alert to this contact.
type EmergencyContact struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID            primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name              string             `bson:"name" json:"name"`
	Relationship      string             `bson:"relationship" json:"relationship"`
	Phone             string             `bson:"phone" json:"phone"`
	Email             string             `bson:"email,omitempty" json:"email,omitempty"`
	AlertOnMissedDose bool               `bson:"alert_on_missed_dose" json:"alert_on_missed_dose"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}
