package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/repository"
	"github.com/sirupsen/logrus"
)

// SupplyNotifier scans medications with supply tracking enabled and warns the
// owner when the remaining doses fall to the configured threshold.
type SupplyNotifier struct {
	MedicationRepo   *repository.MedicationRepository
	NotificationRepo *repository.NotificationRepository
}

// NewSupplyNotifier creates a new instance of SupplyNotifier
func NewSupplyNotifier(medRepo *repository.MedicationRepository, notifRepo *repository.NotificationRepository) *SupplyNotifier {
	return &SupplyNotifier{
		MedicationRepo:   medRepo,
		NotificationRepo: notifRepo,
	}
}

// RunDailyScan checks all tracked medications and queues a low-supply warning
// for each one at or below its threshold. At most one warning per medication
// per day.
func (s *SupplyNotifier) RunDailyScan(ctx context.Context) error {
	meds, err := s.MedicationRepo.GetAllMedications(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch medications: %v", err)
	}

	now := time.Now()
	created := 0

	for _, med := range meds {
		if !med.TracksSupply() || med.Supply > med.LowSupplyThreshold {
			continue
		}

		latest, err := s.NotificationRepo.GetLatestByType(ctx, med.UserID, models.TypeLowSupply)
		if err != nil {
			logrus.WithError(err).Warn("Low supply dedupe lookup failed")
			continue
		}
		if latest != nil && now.Sub(latest.CreatedAt) < 24*time.Hour {
			if rawID, ok := latest.Data[models.DataMedicationID].(string); ok && rawID == med.ID.Hex() {
				continue
			}
		}

		expires := now.Add(24 * time.Hour)
		notif := &models.Notification{
			UserID:  med.UserID,
			Type:    models.TypeLowSupply,
			Title:   "Medication Supply Low",
			Message: fmt.Sprintf("You have %d doses of %s left. Time to refill.", med.Supply, med.Name),
			Data: map[string]interface{}{
				models.DataMedicationID: med.ID.Hex(),
			},
			Priority:     models.PriorityHigh,
			Status:       models.StatusPending,
			ScheduledFor: now,
			ExpiresAt:    &expires,
		}
		if _, err := s.NotificationRepo.Insert(ctx, notif); err != nil {
			logrus.WithError(err).WithField("medication_id", med.ID.Hex()).
				Error("Failed to queue low supply notification")
			continue
		}
		created++
	}

	logrus.WithField("created", created).Info("Supply scan completed")
	return nil
}
