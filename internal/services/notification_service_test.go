package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeNotifFeed struct {
	inserted []*models.Notification
}

func (f *fakeNotifFeed) Insert(_ context.Context, notif *models.Notification) (primitive.ObjectID, error) {
	now := time.Now()
	notif.ID = primitive.NewObjectID()
	notif.CreatedAt = now
	notif.UpdatedAt = now
	f.inserted = append(f.inserted, notif)
	return notif.ID, nil
}

func (f *fakeNotifFeed) GetLatestByType(_ context.Context, userID primitive.ObjectID, notifType string) (*models.Notification, error) {
	for i := len(f.inserted) - 1; i >= 0; i-- {
		if f.inserted[i].UserID == userID && f.inserted[i].Type == notifType {
			return f.inserted[i], nil
		}
	}
	return nil, nil
}

func (f *fakeNotifFeed) GetUserNotifications(_ context.Context, userID primitive.ObjectID, _ int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.inserted {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotifFeed) MarkRead(_ context.Context, id, userID primitive.ObjectID) error {
	for _, n := range f.inserted {
		if n.ID == id && n.UserID == userID {
			n.Status = models.StatusRead
			return nil
		}
	}
	return errors.New("notification not found")
}

func (f *fakeNotifFeed) MarkDismissed(_ context.Context, id, userID primitive.ObjectID) error {
	for _, n := range f.inserted {
		if n.ID == id && n.UserID == userID {
			n.Status = models.StatusDismissed
			return nil
		}
	}
	return errors.New("notification not found")
}

func (f *fakeNotifFeed) ClearForUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	var kept []*models.Notification
	var removed int64
	for _, n := range f.inserted {
		if n.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	f.inserted = kept
	return removed, nil
}

func (f *fakeNotifFeed) byType(notifType string) []*models.Notification {
	var out []*models.Notification
	for _, n := range f.inserted {
		if n.Type == notifType {
			out = append(out, n)
		}
	}
	return out
}

type fakeUserDirectory struct {
	users []models.User
}

func (f *fakeUserDirectory) GetAllUsers(context.Context) ([]models.User, error) {
	return f.users, nil
}

type fakeAdherence struct {
	taken, total int64
}

func (f *fakeAdherence) CountResolvedSince(context.Context, primitive.ObjectID, string) (int64, int64, error) {
	return f.taken, f.total, nil
}

type fakeSettingsResolver struct{}

func (fakeSettingsResolver) GetSettings(_ context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error) {
	return models.DefaultNotificationSettings(userID), nil
}

// flakyTipProvider fails its first n calls, then recovers.
type flakyTipProvider struct {
	failures int
}

func (p *flakyTipProvider) DailyTip(context.Context) (string, string, error) {
	if p.failures > 0 {
		p.failures--
		return "", "", errors.New("tip service unavailable")
	}
	return "Daily Health Tip", "Drink a glass of water with every dose.", nil
}

func tipTestService(feed *fakeNotifFeed, users *fakeUserDirectory, tips TipProvider) *NotificationService {
	return &NotificationService{
		repo:     feed,
		userRepo: users,
		logRepo:  &fakeAdherence{},
		settings: fakeSettingsResolver{},
		tips:     tips,
	}
}

func testUser() models.User {
	return models.User{ID: primitive.NewObjectID(), Name: "Margaret", Email: "margaret@example.com"}
}

func TestPlanDailyHealthTipsProviderFailureSkipsOnlyThatUser(t *testing.T) {
	feed := &fakeNotifFeed{}
	users := &fakeUserDirectory{users: []models.User{testUser(), testUser(), testUser()}}
	svc := tipTestService(feed, users, &flakyTipProvider{failures: 1})

	require.NoError(t, svc.PlanDailyHealthTips(context.Background()))

	// The first user's fetch failed; the remaining users still get tips.
	tips := feed.byType(models.TypeHealthTip)
	require.Len(t, tips, 2)
	assert.Equal(t, users.users[1].ID, tips[0].UserID)
	assert.Equal(t, users.users[2].ID, tips[1].UserID)
	for _, tip := range tips {
		assert.Equal(t, models.StatusPending, tip.Status)
		assert.Equal(t, models.PriorityLow, tip.Priority)
	}
}

func TestPlanDailyHealthTipsDoesNotDuplicateSameDay(t *testing.T) {
	feed := &fakeNotifFeed{}
	users := &fakeUserDirectory{users: []models.User{testUser()}}
	svc := tipTestService(feed, users, &flakyTipProvider{})

	require.NoError(t, svc.PlanDailyHealthTips(context.Background()))
	require.NoError(t, svc.PlanDailyHealthTips(context.Background()))

	assert.Len(t, feed.byType(models.TypeHealthTip), 1)
}

func TestPlanWeeklyProgressReportsSummarizesAdherence(t *testing.T) {
	user := testUser()
	feed := &fakeNotifFeed{}
	svc := &NotificationService{
		repo:     feed,
		userRepo: &fakeUserDirectory{users: []models.User{user}},
		logRepo:  &fakeAdherence{taken: 9, total: 12},
		settings: reportTodayResolver{},
		tips:     &flakyTipProvider{},
	}

	require.NoError(t, svc.PlanWeeklyProgressReports(context.Background()))

	reports := feed.byType(models.TypeProgressReport)
	require.Len(t, reports, 1)
	assert.Equal(t, user.ID, reports[0].UserID)
	assert.Contains(t, reports[0].Message, "9 of 12 doses")
	assert.Contains(t, reports[0].Message, "75%")
}

// reportTodayResolver pins the report weekday to today so the planning run
// is not skipped.
type reportTodayResolver struct{}

func (reportTodayResolver) GetSettings(_ context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error) {
	settings := models.DefaultNotificationSettings(userID)
	settings.ProgressReports.Weekday = int(time.Now().Weekday())
	return settings, nil
}
