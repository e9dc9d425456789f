package reminder

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

func pendingReminder(store *fakeNotificationStore, userID primitive.ObjectID, key models.DoseKey, scheduledFor time.Time) primitive.ObjectID {
	notif := &models.Notification{
		UserID:       userID,
		Type:         models.TypeDoseReminder,
		Title:        "Medication Reminder",
		Priority:     models.PriorityHigh,
		Status:       models.StatusPending,
		ScheduledFor: scheduledFor,
		Data: map[string]interface{}{
			models.DataMedicationID:  key.MedicationID.Hex(),
			models.DataScheduledTime: key.ScheduledTime,
			models.DataDate:          key.Date,
			models.DataOffsetMinutes: 0,
		},
	}
	id, _ := store.Insert(context.Background(), notif)
	return id
}

func TestDispatcherSendsDueNotification(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	notifier := &fakeNotifier{}
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	key := models.NewDoseKey(primitive.NewObjectID(), "09:00", now)

	pendingReminder(store, primitive.NewObjectID(), key, now.Add(-time.Minute))

	d := NewDispatcher(store, logs, &fakeSettingsSource{}, notifier, 0, fixedClock(now))
	sent, err := d.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, notifier.count())

	sentRecords := store.byStatus(models.StatusSent)
	require.Len(t, sentRecords, 1)
	require.NotNil(t, sentRecords[0].SentAt)
	assert.Equal(t, now, *sentRecords[0].SentAt)
}

func TestDispatcherIgnoresFutureAndExpired(t *testing.T) {
	store := newFakeNotificationStore()
	notifier := &fakeNotifier{}
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	userID := primitive.NewObjectID()
	key := models.NewDoseKey(primitive.NewObjectID(), "09:30", now)

	// Not yet due.
	pendingReminder(store, userID, key, now.Add(30*time.Minute))

	// Due but expired: never delivered, left for cleanup.
	expired := now.Add(-time.Minute)
	notif := &models.Notification{
		UserID:       userID,
		Type:         models.TypeDoseReminder,
		Status:       models.StatusPending,
		ScheduledFor: now.Add(-3 * time.Hour),
		ExpiresAt:    &expired,
	}
	_, err := store.Insert(context.Background(), notif)
	require.NoError(t, err)

	d := NewDispatcher(store, newFakeLogStore(), &fakeSettingsSource{}, notifier, 0, fixedClock(now))
	sent, err := d.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, notifier.count())
	assert.Len(t, store.byStatus(models.StatusPending), 2)
}

func TestDispatcherSuppressedStaysPending(t *testing.T) {
	store := newFakeNotificationStore()
	notifier := &fakeNotifier{}
	now := time.Date(2026, 8, 31, 23, 30, 0, 0, time.UTC)
	key := models.NewDoseKey(primitive.NewObjectID(), "23:00", now)

	pendingReminder(store, primitive.NewObjectID(), key, now.Add(-time.Minute))

	settings := models.DefaultNotificationSettings(primitive.NewObjectID())
	settings.QuietHours = models.QuietHoursRange{Enabled: true, Start: "22:00", End: "07:00"}

	d := NewDispatcher(store, newFakeLogStore(), &fakeSettingsSource{settings: settings}, notifier, 0, fixedClock(now))
	sent, err := d.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, notifier.count())

	// Still pending: eligible again on the next scan.
	assert.Len(t, store.byStatus(models.StatusPending), 1)
}

func TestDispatcherResolvedDoseNeverDispatched(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	notifier := &fakeNotifier{}
	now := time.Date(2026, 8, 31, 9, 5, 0, 0, time.UTC)
	medID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	key := models.NewDoseKey(medID, "09:00", now)

	// Reminder planned before the dose was taken.
	pendingReminder(store, userID, key, now.Add(-5*time.Minute))
	logs.put(&models.MedicationLog{
		UserID:        userID,
		MedicationID:  medID,
		ScheduledTime: "09:00",
		Date:          key.Date,
		Taken:         true,
	})

	d := NewDispatcher(store, logs, &fakeSettingsSource{}, notifier, 0, fixedClock(now))
	sent, err := d.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, notifier.count())
}

func TestDispatcherDisplayFailureMarksFailed(t *testing.T) {
	store := newFakeNotificationStore()
	notifier := &fakeNotifier{err: errors.New("push transport down")}
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	key := models.NewDoseKey(primitive.NewObjectID(), "09:00", now)

	pendingReminder(store, primitive.NewObjectID(), key, now.Add(-time.Minute))

	d := NewDispatcher(store, newFakeLogStore(), &fakeSettingsSource{}, notifier, 0, fixedClock(now))
	sent, err := d.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	failed := store.byStatus(models.StatusFailed)
	require.Len(t, failed, 1)
	assert.Nil(t, failed[0].SentAt)
}

func TestDispatcherLostClaimSkipsDisplay(t *testing.T) {
	store := newFakeNotificationStore()
	notifier := &fakeNotifier{}
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	key := models.NewDoseKey(primitive.NewObjectID(), "09:00", now)

	pendingReminder(store, primitive.NewObjectID(), key, now.Add(-time.Minute))

	// Another process claims every record first.
	store.claimFn = func(primitive.ObjectID) (bool, error) { return false, nil }

	d := NewDispatcher(store, newFakeLogStore(), &fakeSettingsSource{}, notifier, 0, fixedClock(now))
	sent, err := d.DispatchDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, notifier.count())
}
