package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationSettings holds a user's notification preferences: the master
// switch, per-type sub-settings and general delivery options. One document
// per user; absent documents fall back to DefaultNotificationSettings.
type NotificationSettings struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID               primitive.ObjectID `bson:"user_id" json:"user_id"`
	NotificationsEnabled bool               `bson:"notifications_enabled" json:"notifications_enabled"`

	MedicationReminders ReminderSettings       `bson:"medication_reminders" json:"medication_reminders"`
	HealthTips          HealthTipSettings      `bson:"health_tips" json:"health_tips"`
	ProgressReports     ProgressReportSettings `bson:"progress_reports" json:"progress_reports"`
	OverdueAlerts       OverdueAlertSettings   `bson:"overdue_alerts" json:"overdue_alerts"`

	Sound      bool            `bson:"sound" json:"sound"`
	Vibration  bool            `bson:"vibration" json:"vibration"`
	LockScreen bool            `bson:"lock_screen" json:"lock_screen"`
	QuietHours QuietHoursRange `bson:"quiet_hours" json:"quiet_hours"`
	Timezone   string          `bson:"timezone,omitempty" json:"timezone,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ReminderSettings controls dose reminders and the minute offsets before the
// scheduled time at which they fire (e.g. [15, 0]).
type ReminderSettings struct {
	Enabled        bool  `bson:"enabled" json:"enabled"`
	OffsetsMinutes []int `bson:"offsets_minutes" json:"offsets_minutes"`
}

// HealthTipSettings controls the daily health tip and its delivery time.
type HealthTipSettings struct {
	Enabled bool   `bson:"enabled" json:"enabled"`
	Time    string `bson:"time" json:"time"` // "HH:MM"
}

// ProgressReportSettings controls the weekly adherence report.
type ProgressReportSettings struct {
	Enabled bool   `bson:"enabled" json:"enabled"`
	Weekday int    `bson:"weekday" json:"weekday"` // 0=Sunday .. 6=Saturday
	Time    string `bson:"time" json:"time"`
}

// OverdueAlertSettings controls the escalation loop for unresolved doses.
// The switch is independent of MedicationReminders.Enabled.
type OverdueAlertSettings struct {
	Enabled         bool `bson:"enabled" json:"enabled"`
	IntervalMinutes int  `bson:"interval_minutes" json:"interval_minutes"`
	MaxReminders    int  `bson:"max_reminders" json:"max_reminders"`
}

// QuietHoursRange is a suppression window that may wrap midnight
// (e.g. 22:00–07:00).
type QuietHoursRange struct {
	Enabled bool   `bson:"enabled" json:"enabled"`
	Start   string `bson:"start" json:"start"` // "HH:MM"
	End     string `bson:"end" json:"end"`     // "HH:MM"
}

// Contains reports whether the wall-clock moment falls inside the window.
func (q QuietHoursRange) Contains(t time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, err := parseMinutes(q.Start)
	if err != nil {
		return false
	}
	end, err := parseMinutes(q.End)
	if err != nil {
		return false
	}
	cur := t.Hour()*60 + t.Minute()
	if start <= end {
		return cur >= start && cur < end
	}
	// Window wraps midnight, e.g. 22:00-07:00.
	return cur >= start || cur < end
}

func parseMinutes(hhmm string) (int, error) {
	t, err := time.Parse(TimeLayout, hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DefaultNotificationSettings returns the settings applied to users who have
// never saved any.
func DefaultNotificationSettings(userID primitive.ObjectID) *NotificationSettings {
	return &NotificationSettings{
		UserID:               userID,
		NotificationsEnabled: true,
		MedicationReminders: ReminderSettings{
			Enabled:        true,
			OffsetsMinutes: []int{15, 0},
		},
		HealthTips: HealthTipSettings{
			Enabled: true,
			Time:    "09:00",
		},
		ProgressReports: ProgressReportSettings{
			Enabled: true,
			Weekday: 1, // Monday
			Time:    "08:00",
		},
		OverdueAlerts: OverdueAlertSettings{
			Enabled:         true,
			IntervalMinutes: 15,
			MaxReminders:    3,
		},
		Sound:     true,
		Vibration: true,
		QuietHours: QuietHoursRange{
			Enabled: false,
			Start:   "22:00",
			End:     "07:00",
		},
	}
}

// Offsets returns the configured reminder offsets, falling back to the
// defaults when the list is empty.
func (s *NotificationSettings) Offsets() []int {
	if len(s.MedicationReminders.OffsetsMinutes) == 0 {
		return []int{15, 0}
	}
	return s.MedicationReminders.OffsetsMinutes
}
