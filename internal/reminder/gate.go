package reminder

import (
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
)

// Suppression reasons reported by the gate. Suppression is a decision, not
// an error: a denied notification simply stays PENDING for the next scan.
const (
	ReasonDisabled     = "notifications_disabled"
	ReasonQuietHours   = "quiet_hours"
	ReasonTypeDisabled = "type_disabled"
	ReasonDoseResolved = "dose_resolved"
)

// Decision is the outcome of the gate for a single candidate notification.
type Decision struct {
	Allowed bool
	Reason  string
}

var allowed = Decision{Allowed: true}

func suppressed(reason string) Decision {
	return Decision{Reason: reason}
}

// EvaluateGate decides whether a due notification may be displayed right
// now. It is evaluated at dispatch time, never at creation time, so quiet
// hours and dose resolution always reflect the current state. doseResolved
// is the authoritative "already taken or dismissed" status for the
// notification's dose key; it is ignored for non-dose types.
func EvaluateGate(notif *models.Notification, settings *models.NotificationSettings, doseResolved bool, now time.Time) Decision {
	if settings == nil || !settings.NotificationsEnabled {
		return suppressed(ReasonDisabled)
	}

	if settings.QuietHours.Contains(now) {
		return suppressed(ReasonQuietHours)
	}

	switch {
	case notif.IsOverdue():
		// Overdue alerts have their own switch, independent of the base
		// reminder switch.
		if !settings.OverdueAlerts.Enabled {
			return suppressed(ReasonTypeDisabled)
		}
	case notif.Type == models.TypeDoseReminder:
		if !settings.MedicationReminders.Enabled {
			return suppressed(ReasonTypeDisabled)
		}
	case notif.Type == models.TypeHealthTip:
		if !settings.HealthTips.Enabled {
			return suppressed(ReasonTypeDisabled)
		}
	case notif.Type == models.TypeProgressReport:
		if !settings.ProgressReports.Enabled {
			return suppressed(ReasonTypeDisabled)
		}
	}

	// Primary duplicate suppression: a reminder for a dose the user already
	// acted upon never fires, even if it was planned before the action.
	if notif.DoseRelated() && doseResolved {
		return suppressed(ReasonDoseResolved)
	}

	return allowed
}
