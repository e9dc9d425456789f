package services

import (
	"context"
	"fmt"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/reminder"
	"github.com/Amina2304/MedTrack/internal/repository"
	"github.com/Amina2304/MedTrack/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MedicationService owns medication CRUD and keeps the reminder engine in
// sync with schedule changes.
type MedicationService struct {
	repo      *repository.MedicationRepository
	logRepo   *repository.LogRepository
	planner   *reminder.Planner
	escalator *reminder.Escalator
}

func NewMedicationService(repo *repository.MedicationRepository, logRepo *repository.LogRepository, planner *reminder.Planner, escalator *reminder.Escalator) *MedicationService {
	return &MedicationService{
		repo:      repo,
		logRepo:   logRepo,
		planner:   planner,
		escalator: escalator,
	}
}

// CreateMedication validates and stores a medication, then plans its
// reminders immediately so the first dose is covered without waiting for the
// batch cycle.
func (s *MedicationService) CreateMedication(ctx context.Context, med *models.Medication) (*models.Medication, error) {
	if med.Name == "" || len(med.Times) == 0 {
		return nil, fmt.Errorf("medication requires a name and at least one dose time")
	}

	created, err := s.repo.CreateMedication(ctx, med)
	if err != nil {
		return nil, err
	}

	if _, err := s.planner.PlanMedication(ctx, created); err != nil {
		logger.Log.WithError(err).WithField("medication_id", created.ID.Hex()).
			Warn("Failed to plan reminders for new medication")
	}
	return created, nil
}

// GetMedication fetches a medication, enforcing ownership.
func (s *MedicationService) GetMedication(ctx context.Context, id, userID primitive.ObjectID) (*models.Medication, error) {
	med, err := s.repo.GetMedicationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if med.UserID != userID {
		return nil, fmt.Errorf("medication does not belong to user")
	}
	return med, nil
}

// GetUserMedications returns all medications of a user.
func (s *MedicationService) GetUserMedications(ctx context.Context, userID primitive.ObjectID) ([]models.Medication, error) {
	return s.repo.GetUserMedications(ctx, userID)
}

// UpdateMedication saves schedule edits and replans: running escalation for
// the old slots is cancelled, stale pending reminders are cleared and the
// new schedule is planned fresh.
func (s *MedicationService) UpdateMedication(ctx context.Context, id, userID primitive.ObjectID, med *models.Medication) (*models.Medication, error) {
	existing, err := s.GetMedication(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.cancelEscalation(existing)

	med.ID = id
	med.UserID = userID
	med.CreatedAt = existing.CreatedAt
	updated, err := s.repo.UpdateMedication(ctx, id, med)
	if err != nil {
		return nil, err
	}

	if _, err := s.planner.Replan(ctx, updated); err != nil {
		logger.Log.WithError(err).WithField("medication_id", id.Hex()).
			Warn("Failed to replan reminders after medication update")
	}
	return updated, nil
}

// DeleteMedication removes a medication, its pending notifications and any
// running escalation. Logs are kept for history unless the user opted into
// deletion on removal.
func (s *MedicationService) DeleteMedication(ctx context.Context, id, userID primitive.ObjectID) error {
	med, err := s.GetMedication(ctx, id, userID)
	if err != nil {
		return err
	}

	s.cancelEscalation(med)
	if _, err := s.planner.Replan(ctx, &models.Medication{ID: id, UserID: userID}); err != nil {
		logger.Log.WithError(err).Warn("Failed to clear pending reminders for removed medication")
	}

	if err := s.repo.DeleteMedication(ctx, id); err != nil {
		return err
	}

	if med.DeleteLogsOnRemove {
		if _, err := s.logRepo.DeleteByMedication(ctx, id); err != nil {
			logger.Log.WithError(err).WithField("medication_id", id.Hex()).
				Warn("Failed to delete logs for removed medication")
		}
	}
	return nil
}

// ResolvedHook is wired into the dose recorder: a taken dose decrements the
// medication's remaining supply.
func (s *MedicationService) ResolvedHook(ctx context.Context, key models.DoseKey, taken bool) {
	if !taken {
		return
	}
	if err := s.repo.DecrementSupply(ctx, key.MedicationID); err != nil {
		logger.Log.WithError(err).WithField("medication_id", key.MedicationID.Hex()).
			Warn("Failed to decrement supply")
	}
}

func (s *MedicationService) cancelEscalation(med *models.Medication) {
	now := nowForDay()
	for _, doseTime := range med.Times {
		s.escalator.Cancel(models.NewDoseKey(med.ID, doseTime, now))
	}
}
