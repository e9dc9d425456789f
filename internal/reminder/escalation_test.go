package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// escalatorHarness drives escalation ticks manually instead of waiting on
// real timers.
type escalatorHarness struct {
	esc   *Escalator
	ticks []func()
}

func newEscalatorHarness(store *fakeNotificationStore, logs *fakeLogStore, settings *fakeSettingsSource, now time.Time, onExhausted ExhaustedFunc) *escalatorHarness {
	h := &escalatorHarness{}
	h.esc = NewEscalator(store, logs, settings, fixedClock(now), onExhausted)
	h.esc.after = func(_ time.Duration, f func()) *time.Timer {
		h.ticks = append(h.ticks, f)
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		return timer
	}
	return h
}

// runTick fires the oldest scheduled tick.
func (h *escalatorHarness) runTick(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, h.ticks, "no escalation tick scheduled")
	tick := h.ticks[0]
	h.ticks = h.ticks[1:]
	tick()
}

func escalationSettings(interval, max int) *fakeSettingsSource {
	settings := models.DefaultNotificationSettings(primitive.NewObjectID())
	settings.OverdueAlerts.IntervalMinutes = interval
	settings.OverdueAlerts.MaxReminders = max
	return &fakeSettingsSource{settings: settings}
}

func TestEscalationEmitsUpToCapThenStops(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	med := testMedication("09:00")
	key := models.NewDoseKey(med.ID, "09:00", now)

	exhausted := 0
	h := newEscalatorHarness(store, logs, escalationSettings(15, 2), now, func(userID primitive.ObjectID, gotKey models.DoseKey, medName string) {
		exhausted++
		assert.Equal(t, key, gotKey)
		assert.Equal(t, "Aspirin", medName)
	})

	require.NoError(t, h.esc.Start(context.Background(), med, key))
	require.True(t, h.esc.Running(key))

	h.runTick(t) // first overdue alert
	h.runTick(t) // second, reaches the cap

	overdue := store.byType(models.TypeDoseOverdue)
	require.Len(t, overdue, 2)
	assert.Equal(t, 1, overdue[0].Data[models.DataReminderCount])
	assert.Equal(t, 2, overdue[1].Data[models.DataReminderCount])
	for _, n := range overdue {
		assert.Equal(t, models.PriorityUrgent, n.Priority)
		assert.Equal(t, true, n.Data[models.DataIsOverdue])
		assert.Equal(t, 30, n.Data[models.DataMinutesOverdue])
		assert.Equal(t, models.StatusPending, n.Status)
	}

	assert.False(t, h.esc.Running(key))
	assert.Equal(t, 1, exhausted)
	assert.Empty(t, h.ticks, "capped loop must not reschedule")
}

func TestEscalationStopsWhenDoseResolved(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	med := testMedication("09:00")
	key := models.NewDoseKey(med.ID, "09:00", now)

	h := newEscalatorHarness(store, logs, escalationSettings(15, 3), now, nil)
	require.NoError(t, h.esc.Start(context.Background(), med, key))

	h.runTick(t)
	require.Len(t, store.byType(models.TypeDoseOverdue), 1)

	// Dose taken between ticks: the loop must stop before another emission.
	logs.put(&models.MedicationLog{
		UserID:        med.UserID,
		MedicationID:  med.ID,
		ScheduledTime: "09:00",
		Date:          key.Date,
		Taken:         true,
	})
	h.runTick(t)

	assert.Len(t, store.byType(models.TypeDoseOverdue), 1)
	assert.False(t, h.esc.Running(key))
}

func TestEscalationCancelStopsLoop(t *testing.T) {
	store := newFakeNotificationStore()
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	med := testMedication("09:00")
	key := models.NewDoseKey(med.ID, "09:00", now)

	h := newEscalatorHarness(store, newFakeLogStore(), escalationSettings(15, 3), now, nil)
	require.NoError(t, h.esc.Start(context.Background(), med, key))

	h.esc.Cancel(key)
	assert.False(t, h.esc.Running(key))

	// A tick that was already in flight when the loop was cancelled is a
	// no-op.
	h.runTick(t)
	assert.Empty(t, store.byType(models.TypeDoseOverdue))
}

func TestEscalationStopAllCancelsEveryLoop(t *testing.T) {
	store := newFakeNotificationStore()
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	morning := testMedication("08:00")
	evening := testMedication("09:00")
	morningKey := models.NewDoseKey(morning.ID, "08:00", now)
	eveningKey := models.NewDoseKey(evening.ID, "09:00", now)

	h := newEscalatorHarness(store, newFakeLogStore(), escalationSettings(15, 3), now, nil)
	require.NoError(t, h.esc.Start(context.Background(), morning, morningKey))
	require.NoError(t, h.esc.Start(context.Background(), evening, eveningKey))

	h.esc.StopAll()

	assert.False(t, h.esc.Running(morningKey))
	assert.False(t, h.esc.Running(eveningKey))

	// In-flight ticks from the stopped loops must be no-ops.
	h.runTick(t)
	h.runTick(t)
	assert.Empty(t, store.byType(models.TypeDoseOverdue))
}

func TestEscalationRestartDoesNotStack(t *testing.T) {
	store := newFakeNotificationStore()
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	med := testMedication("09:00")
	key := models.NewDoseKey(med.ID, "09:00", now)

	h := newEscalatorHarness(store, newFakeLogStore(), escalationSettings(15, 3), now, nil)
	require.NoError(t, h.esc.Start(context.Background(), med, key))
	require.NoError(t, h.esc.Start(context.Background(), med, key))

	// Both scheduled ticks fire, but only the second loop is live: exactly
	// one alert.
	h.runTick(t)
	h.runTick(t)
	assert.Len(t, store.byType(models.TypeDoseOverdue), 1)
}

func TestEscalationCapSurvivesRestart(t *testing.T) {
	store := newFakeNotificationStore()
	now := time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	med := testMedication("09:00")
	key := models.NewDoseKey(med.ID, "09:00", now)

	// Two alerts already exist from a previous process lifetime.
	for i := 0; i < 2; i++ {
		_, err := store.Insert(context.Background(), &models.Notification{
			UserID: med.UserID,
			Type:   models.TypeDoseOverdue,
			Status: models.StatusSent,
			Data: map[string]interface{}{
				models.DataMedicationID:  med.ID.Hex(),
				models.DataScheduledTime: "09:00",
				models.DataDate:          key.Date,
				models.DataIsOverdue:     true,
			},
		})
		require.NoError(t, err)
	}

	h := newEscalatorHarness(store, newFakeLogStore(), escalationSettings(15, 2), now, nil)
	require.NoError(t, h.esc.Start(context.Background(), med, key))

	assert.False(t, h.esc.Running(key), "capped dose must not restart its loop")
	assert.Empty(t, h.ticks)
}

func TestEscalationSweepStartsOverdueLoopsOnly(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	overdueMed := testMedication("08:00")
	futureMed := testMedication("23:00")
	resolvedMed := testMedication("10:00")
	logs.put(&models.MedicationLog{
		UserID:        resolvedMed.UserID,
		MedicationID:  resolvedMed.ID,
		ScheduledTime: "10:00",
		Date:          "2026-08-31",
		Dismissed:     true,
	})

	h := newEscalatorHarness(store, logs, escalationSettings(15, 3), now, nil)
	h.esc.Sweep(context.Background(), []models.Medication{*overdueMed, *futureMed, *resolvedMed})

	assert.True(t, h.esc.Running(models.NewDoseKey(overdueMed.ID, "08:00", now)))
	assert.False(t, h.esc.Running(models.NewDoseKey(futureMed.ID, "23:00", now)))
	assert.False(t, h.esc.Running(models.NewDoseKey(resolvedMed.ID, "10:00", now)))

	// Sweeping again must not stack a second loop.
	before := len(h.ticks)
	h.esc.Sweep(context.Background(), []models.Medication{*overdueMed})
	assert.Equal(t, before, len(h.ticks))
}
