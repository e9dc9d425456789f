package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/Amina2304/MedTrack/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TipProvider is the external advice-text capability consumed for daily
// health tips. Text generation itself is out of scope.
type TipProvider interface {
	DailyTip(ctx context.Context) (title, message string, err error)
}

// StaticTipProvider rotates through a fixed set of tips; the development
// fallback when no external provider is configured.
type StaticTipProvider struct{}

var staticTips = []string{
	"Take your medications with a full glass of water unless directed otherwise.",
	"Store medications in a cool, dry place away from direct sunlight.",
	"Keep a consistent daily routine; it makes doses easier to remember.",
	"Review your medication list with your doctor at least once a year.",
	"Never share prescription medication, even with family members.",
}

func (StaticTipProvider) DailyTip(context.Context) (string, string, error) {
	return "Daily Health Tip", staticTips[time.Now().YearDay()%len(staticTips)], nil
}

// Store capabilities the service consumes; the Mongo repositories satisfy
// them, the tests use fakes.
type notificationStore interface {
	Insert(ctx context.Context, notif *models.Notification) (primitive.ObjectID, error)
	GetLatestByType(ctx context.Context, userID primitive.ObjectID, notifType string) (*models.Notification, error)
	GetUserNotifications(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	MarkDismissed(ctx context.Context, id, userID primitive.ObjectID) error
	ClearForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type userDirectory interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
}

type adherenceCounter interface {
	CountResolvedSince(ctx context.Context, userID primitive.ObjectID, from string) (int64, int64, error)
}

type settingsResolver interface {
	GetSettings(ctx context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error)
}

// NotificationService covers the user-facing notification operations and the
// non-dose planning jobs (health tips, progress reports).
type NotificationService struct {
	repo     notificationStore
	userRepo userDirectory
	logRepo  adherenceCounter
	settings settingsResolver
	tips     TipProvider
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, logRepo *repository.LogRepository, settings *SettingsService, tips TipProvider) *NotificationService {
	return &NotificationService{
		repo:     repo,
		userRepo: userRepo,
		logRepo:  logRepo,
		settings: settings,
		tips:     tips,
	}
}

// GetUserNotifications returns the user's unexpired notifications.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.GetUserNotifications(ctx, userID, limit)
}

// MarkNotificationRead sets a sent notification to read.
func (s *NotificationService) MarkNotificationRead(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

// DismissNotification sets a notification to dismissed.
func (s *NotificationService) DismissNotification(ctx context.Context, id, userID primitive.ObjectID) error {
	return s.repo.MarkDismissed(ctx, id, userID)
}

// ClearNotifications removes all of the user's notifications.
func (s *NotificationService) ClearNotifications(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.repo.ClearForUser(ctx, userID)
}

// PlanDailyHealthTips creates today's pending health-tip notification for
// every user who has tips enabled. Runs once a day; a tip already created
// today is not duplicated.
func (s *NotificationService) PlanDailyHealthTips(ctx context.Context) error {
	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch users: %w", err)
	}

	now := time.Now()
	for _, user := range users {
		settings, err := s.settings.GetSettings(ctx, user.ID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to load settings for tips")
			continue
		}
		if !settings.HealthTips.Enabled {
			continue
		}

		existing, err := s.repo.GetLatestByType(ctx, user.ID, models.TypeHealthTip)
		if err == nil && existing != nil && sameDay(existing.CreatedAt, now) {
			continue
		}

		title, message, err := s.tips.DailyTip(ctx)
		if err != nil {
			logrus.WithError(err).WithField("user_id", user.ID.Hex()).
				Warn("Tip provider failed, skipping user")
			continue
		}

		scheduledFor := atTimeToday(settings.HealthTips.Time, now)
		expires := scheduledFor.Add(24 * time.Hour)
		notif := &models.Notification{
			UserID:       user.ID,
			Type:         models.TypeHealthTip,
			Title:        title,
			Message:      message,
			Priority:     models.PriorityLow,
			Status:       models.StatusPending,
			ScheduledFor: scheduledFor,
			ExpiresAt:    &expires,
		}
		if _, err := s.repo.Insert(ctx, notif); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to create health tip")
		}
	}
	return nil
}

// PlanWeeklyProgressReports creates the adherence report for users whose
// configured report day is today.
func (s *NotificationService) PlanWeeklyProgressReports(ctx context.Context) error {
	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch users: %w", err)
	}

	now := time.Now()
	for _, user := range users {
		settings, err := s.settings.GetSettings(ctx, user.ID)
		if err != nil {
			continue
		}
		if !settings.ProgressReports.Enabled || int(now.Weekday()) != settings.ProgressReports.Weekday {
			continue
		}

		existing, err := s.repo.GetLatestByType(ctx, user.ID, models.TypeProgressReport)
		if err == nil && existing != nil && now.Sub(existing.CreatedAt) < 6*24*time.Hour {
			continue
		}

		weekAgo := now.AddDate(0, 0, -7).Format(models.DateLayout)
		taken, total, err := s.logRepo.CountResolvedSince(ctx, user.ID, weekAgo)
		if err != nil {
			logrus.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to compute adherence")
			continue
		}

		message := "No doses were scheduled this week."
		if total > 0 {
			message = fmt.Sprintf("You took %d of %d doses this week (%d%%). Keep it up!", taken, total, taken*100/total)
		}

		scheduledFor := atTimeToday(settings.ProgressReports.Time, now)
		expires := scheduledFor.Add(24 * time.Hour)
		notif := &models.Notification{
			UserID:       user.ID,
			Type:         models.TypeProgressReport,
			Title:        "Weekly Progress Report",
			Message:      message,
			Priority:     models.PriorityLow,
			Status:       models.StatusPending,
			ScheduledFor: scheduledFor,
			ExpiresAt:    &expires,
		}
		if _, err := s.repo.Insert(ctx, notif); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to create progress report")
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	return a.Format(models.DateLayout) == b.Format(models.DateLayout)
}

// atTimeToday resolves "HH:MM" on today's date, falling back to now on parse
// errors.
func atTimeToday(hhmm string, now time.Time) time.Time {
	parsed, err := time.Parse(models.TimeLayout, hhmm)
	if err != nil {
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
}
