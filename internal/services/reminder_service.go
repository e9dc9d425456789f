package services

import (
	"context"
	"fmt"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/reminder"
	"github.com/Amina2304/MedTrack/internal/repository"
	"github.com/Amina2304/MedTrack/pkg/email"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReminderService runs the authoritative reminder cycle: plan reminders for
// every medication, dispatch what is due and sweep for overdue doses. The
// cron job drives it; no client needs to be open for delivery.
type ReminderService struct {
	medRepo     *repository.MedicationRepository
	notifRepo   *repository.NotificationRepository
	contactRepo *repository.ContactRepository
	userRepo    *repository.UserRepository
	planner     *reminder.Planner
	dispatcher  *reminder.Dispatcher
	escalator   *reminder.Escalator
}

func NewReminderService(
	medRepo *repository.MedicationRepository,
	notifRepo *repository.NotificationRepository,
	contactRepo *repository.ContactRepository,
	userRepo *repository.UserRepository,
	planner *reminder.Planner,
	dispatcher *reminder.Dispatcher,
	escalator *reminder.Escalator,
) *ReminderService {
	return &ReminderService{
		medRepo:     medRepo,
		notifRepo:   notifRepo,
		contactRepo: contactRepo,
		userRepo:    userRepo,
		planner:     planner,
		dispatcher:  dispatcher,
		escalator:   escalator,
	}
}

// RunCycle executes one authoritative tick. Failures are logged and retried
// on the next tick; the cycle re-evaluates all state every run, so it is
// self-healing.
func (s *ReminderService) RunCycle(ctx context.Context) error {
	meds, err := s.medRepo.GetAllMedications(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch medications for cycle: %w", err)
	}

	for i := range meds {
		if _, err := s.planner.PlanMedication(ctx, &meds[i]); err != nil {
			logrus.WithError(err).WithField("medication_id", meds[i].ID.Hex()).
				Warn("Planning failed, will retry next cycle")
		}
	}

	if _, err := s.dispatcher.DispatchDue(ctx); err != nil {
		logrus.WithError(err).Warn("Dispatch failed, will retry next cycle")
	}

	s.escalator.Sweep(ctx, meds)
	return nil
}

// Maintenance requeues failed notifications still inside their delivery
// window and removes expired ones.
func (s *ReminderService) Maintenance(ctx context.Context) error {
	now := nowForDay()
	requeued, err := s.notifRepo.RequeueFailed(ctx, now)
	if err != nil {
		return err
	}
	if requeued > 0 {
		logrus.WithField("requeued", requeued).Info("Requeued failed notifications")
	}

	_, err = s.notifRepo.DeleteExpired(ctx, now)
	return err
}

// AlertEmergencyContacts is the escalator's exhaustion callback: the dose
// stayed unresolved through every reminder, so flagged contacts get an
// email.
func (s *ReminderService) AlertEmergencyContacts(userID primitive.ObjectID, key models.DoseKey, medicationName string) {
	ctx := context.Background()

	contacts, err := s.contactRepo.GetAlertableContacts(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID.Hex()).Warn("Failed to load emergency contacts")
		return
	}
	if len(contacts) == 0 {
		return
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID.Hex()).Warn("Failed to load user for contact alert")
		return
	}

	subject := fmt.Sprintf("MedTrack alert: %s may have missed a dose", user.Name)
	body := fmt.Sprintf(
		"%s has not taken %s scheduled for %s on %s despite repeated reminders. You may want to check in.",
		user.Name, medicationName, key.ScheduledTime, key.Date,
	)
	for _, contact := range contacts {
		if err := email.SendEmail(contact.Email, subject, body); err != nil {
			logrus.WithError(err).WithField("contact_id", contact.ID.Hex()).Warn("Failed to send missed-dose alert")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"contact_id": contact.ID.Hex(),
			"dose_key":   key.String(),
		}).Info("Missed-dose alert sent to emergency contact")
	}
}
