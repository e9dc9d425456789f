package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	log "github.com/sirupsen/logrus"
)

// How long a planned reminder stays deliverable past its scheduled moment.
// Suppressed or undelivered reminders age out instead of catching up.
const reminderTTL = 2 * time.Hour

// Planner expands a medication's dose times into PENDING reminder
// notifications: one per dose time per configured offset, for the nearest
// future occurrence. Re-running it for the same medication and day is
// idempotent.
type Planner struct {
	notifications NotificationStore
	logs          DoseLogStore
	settings      SettingsSource
	now           func() time.Time
}

// NewPlanner creates a planner. nowFn may be nil, in which case time.Now is
// used.
func NewPlanner(notifications NotificationStore, logs DoseLogStore, settings SettingsSource, nowFn func() time.Time) *Planner {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Planner{
		notifications: notifications,
		logs:          logs,
		settings:      settings,
		now:           nowFn,
	}
}

// PlanMedication creates the missing reminder notifications for one
// medication and returns how many were inserted.
func (p *Planner) PlanMedication(ctx context.Context, med *models.Medication) (int, error) {
	if len(med.Times) == 0 {
		return 0, nil
	}

	settings, err := p.settings.GetSettings(ctx, med.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to load settings for planning: %w", err)
	}

	now := p.now()
	created := 0

	for _, doseTime := range med.Times {
		occurrence, err := nextOccurrence(doseTime, now)
		if err != nil {
			log.WithField("medication_id", med.ID.Hex()).WithField("time", doseTime).
				Warn("Skipping invalid dose time")
			continue
		}
		if !med.Active(occurrence) {
			continue
		}

		key := models.NewDoseKey(med.ID, doseTime, occurrence)

		// A dose the user already resolved today gets no further
		// notifications at all.
		entry, err := p.logs.FindByDoseKey(ctx, key)
		if err != nil {
			return created, fmt.Errorf("failed to check dose log while planning: %w", err)
		}
		if entry.Resolved() {
			continue
		}

		for _, offset := range settings.Offsets() {
			if offset < 0 {
				continue
			}

			existing, err := p.notifications.FindScheduledDose(ctx, med.ID, doseTime, offset, key.Date)
			if err != nil {
				return created, fmt.Errorf("failed to check existing reminders: %w", err)
			}
			if len(existing) > 0 {
				continue
			}

			scheduledFor := occurrence.Add(-time.Duration(offset) * time.Minute)
			expires := scheduledFor.Add(reminderTTL)

			notif := &models.Notification{
				UserID:       med.UserID,
				Type:         models.TypeDoseReminder,
				Title:        "Medication Reminder",
				Message:      reminderMessage(med, offset),
				Priority:     reminderPriority(offset),
				Status:       models.StatusPending,
				ScheduledFor: scheduledFor,
				ExpiresAt:    &expires,
				Data: map[string]interface{}{
					models.DataMedicationID:  med.ID.Hex(),
					models.DataScheduledTime: doseTime,
					models.DataDate:          key.Date,
					models.DataOffsetMinutes: offset,
				},
			}
			if _, err := p.notifications.Insert(ctx, notif); err != nil {
				return created, fmt.Errorf("failed to insert reminder: %w", err)
			}
			created++
		}
	}

	if created > 0 {
		log.WithFields(log.Fields{
			"medication_id": med.ID.Hex(),
			"created":       created,
		}).Info("Planned dose reminders")
	}
	return created, nil
}

// Replan clears the medication's still-pending notifications and plans
// fresh ones. Called when the schedule is edited so no orphaned duplicates
// survive.
func (p *Planner) Replan(ctx context.Context, med *models.Medication) (int, error) {
	if _, err := p.notifications.DeletePendingForMedication(ctx, med.ID); err != nil {
		return 0, fmt.Errorf("failed to clear pending reminders: %w", err)
	}
	return p.PlanMedication(ctx, med)
}

// nextOccurrence resolves a "HH:MM" dose time to its nearest future
// occurrence: today if the slot is still ahead, tomorrow otherwise.
func nextOccurrence(doseTime string, now time.Time) (time.Time, error) {
	parsed, err := time.Parse(models.TimeLayout, doseTime)
	if err != nil {
		return time.Time{}, err
	}
	occurrence := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if occurrence.Before(now) {
		occurrence = occurrence.AddDate(0, 0, 1)
	}
	return occurrence, nil
}

func reminderPriority(offset int) string {
	if offset == 0 {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}

func reminderMessage(med *models.Medication, offset int) string {
	if offset == 0 {
		return fmt.Sprintf("Time to take %s (%s).", med.Name, med.Dosage)
	}
	return fmt.Sprintf("%s (%s) is due in %d minutes.", med.Name, med.Dosage, offset)
}
