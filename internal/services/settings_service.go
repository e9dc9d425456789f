package services

import (
	"context"
	"fmt"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SettingsService resolves and saves notification settings. It is the
// engine's SettingsSource: users who never saved settings get the defaults.
type SettingsService struct {
	repo *repository.SettingsRepository
}

func NewSettingsService(repo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// GetSettings returns the user's settings with defaults applied.
func (s *SettingsService) GetSettings(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error) {
	settings, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return models.DefaultNotificationSettings(userID), nil
	}
	return settings, nil
}

// UpdateSettings saves the user's settings.
func (s *SettingsService) UpdateSettings(ctx context.Context, userID primitive.ObjectID, settings *models.NotificationSettings) (*models.NotificationSettings, error) {
	settings.UserID = userID
	if settings.OverdueAlerts.IntervalMinutes < 0 || settings.OverdueAlerts.MaxReminders < 0 {
		return nil, fmt.Errorf("overdue alert settings must not be negative")
	}
	return s.repo.Upsert(ctx, settings)
}
