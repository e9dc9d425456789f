package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/reminder"
	"github.com/Amina2304/MedTrack/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func nowForDay() time.Time { return time.Now() }

// LogService exposes medication log queries and the resolving dose actions.
// The actual exactly-once semantics live in the engine's Recorder; this
// layer adds ownership checks and defaults.
type LogService struct {
	repo     *repository.LogRepository
	medRepo  *repository.MedicationRepository
	recorder *reminder.Recorder
}

func NewLogService(repo *repository.LogRepository, medRepo *repository.MedicationRepository, recorder *reminder.Recorder) *LogService {
	return &LogService{
		repo:     repo,
		medRepo:  medRepo,
		recorder: recorder,
	}
}

// GetUserLogs returns logs between two calendar days (inclusive). Empty
// bounds default to the last seven days.
func (s *LogService) GetUserLogs(ctx context.Context, userID primitive.ObjectID, from, to string) ([]models.MedicationLog, error) {
	if to == "" {
		to = nowForDay().Format(models.DateLayout)
	}
	if from == "" {
		from = nowForDay().AddDate(0, 0, -7).Format(models.DateLayout)
	}
	return s.repo.GetUserLogs(ctx, userID, from, to)
}

// MarkTaken records the dose as taken for the user. The date defaults to
// today when the caller omits it.
func (s *LogService) MarkTaken(ctx context.Context, userID primitive.ObjectID, key models.DoseKey) (*reminder.Outcome, error) {
	if err := s.validateKey(ctx, userID, &key); err != nil {
		return nil, err
	}
	return s.recorder.MarkTaken(ctx, userID, key)
}

// MarkDismissed records the dose as dismissed.
func (s *LogService) MarkDismissed(ctx context.Context, userID primitive.ObjectID, key models.DoseKey) (*reminder.Outcome, error) {
	if err := s.validateKey(ctx, userID, &key); err != nil {
		return nil, err
	}
	return s.recorder.MarkDismissed(ctx, userID, key)
}

func (s *LogService) validateKey(ctx context.Context, userID primitive.ObjectID, key *models.DoseKey) error {
	if key.Date == "" {
		key.Date = nowForDay().Format(models.DateLayout)
	}
	if _, err := time.Parse(models.DateLayout, key.Date); err != nil {
		return fmt.Errorf("invalid date %q", key.Date)
	}
	if _, err := time.Parse(models.TimeLayout, key.ScheduledTime); err != nil {
		return fmt.Errorf("invalid scheduled time %q", key.ScheduledTime)
	}

	med, err := s.medRepo.GetMedicationByID(ctx, key.MedicationID)
	if err != nil {
		return fmt.Errorf("medication not found: %w", err)
	}
	if med.UserID != userID {
		return fmt.Errorf("medication does not belong to user")
	}
	return nil
}
