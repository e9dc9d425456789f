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

func testMedication(times ...string) *models.Medication {
	return &models.Medication{
		ID:     primitive.NewObjectID(),
		UserID: primitive.NewObjectID(),
		Name:   "Aspirin",
		Dosage: "100mg",
		Times:  times,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPlannerCreatesReminderPerOffset(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)

	planner := NewPlanner(store, logs, &fakeSettingsSource{}, fixedClock(now))
	med := testMedication("09:00")

	created, err := planner.PlanMedication(context.Background(), med)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	pending := store.byStatus(models.StatusPending)
	require.Len(t, pending, 2)

	var scheduled []time.Time
	for _, n := range pending {
		assert.Equal(t, models.TypeDoseReminder, n.Type)
		assert.Equal(t, med.UserID, n.UserID)
		assert.Equal(t, "09:00", n.Data[models.DataScheduledTime])
		assert.Equal(t, "2026-08-31", n.Data[models.DataDate])
		require.NotNil(t, n.ExpiresAt)
		scheduled = append(scheduled, n.ScheduledFor)
	}
	assert.Contains(t, scheduled, time.Date(2026, 8, 31, 8, 45, 0, 0, time.UTC))
	assert.Contains(t, scheduled, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))
}

func TestPlannerIsIdempotent(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)

	planner := NewPlanner(store, logs, &fakeSettingsSource{}, fixedClock(now))
	med := testMedication("09:00", "21:00")

	first, err := planner.PlanMedication(context.Background(), med)
	require.NoError(t, err)
	assert.Equal(t, 4, first)

	second, err := planner.PlanMedication(context.Background(), med)
	require.NoError(t, err)
	assert.Zero(t, second)
	assert.Len(t, store.byStatus(models.StatusPending), 4)
}

func TestPlannerRollsPastSlotToTomorrow(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC) // 09:00 already passed

	planner := NewPlanner(store, logs, &fakeSettingsSource{}, fixedClock(now))

	_, err := planner.PlanMedication(context.Background(), testMedication("09:00"))
	require.NoError(t, err)

	pending := store.byStatus(models.StatusPending)
	require.Len(t, pending, 2)
	for _, n := range pending {
		assert.Equal(t, "2026-09-01", n.Data[models.DataDate])
	}
}

func TestPlannerSkipsResolvedDose(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	med := testMedication("09:00")

	logs.put(&models.MedicationLog{
		UserID:        med.UserID,
		MedicationID:  med.ID,
		ScheduledTime: "09:00",
		Date:          "2026-08-31",
		Taken:         true,
	})

	planner := NewPlanner(store, logs, &fakeSettingsSource{}, fixedClock(now))
	created, err := planner.PlanMedication(context.Background(), med)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, store.byStatus(models.StatusPending))
}

func TestPlannerHonorsConfiguredOffsets(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)

	settings := models.DefaultNotificationSettings(primitive.NewObjectID())
	settings.MedicationReminders.OffsetsMinutes = []int{30}

	planner := NewPlanner(store, logs, &fakeSettingsSource{settings: settings}, fixedClock(now))

	created, err := planner.PlanMedication(context.Background(), testMedication("09:00"))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	pending := store.byStatus(models.StatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC), pending[0].ScheduledFor)
	assert.Equal(t, models.PriorityMedium, pending[0].Priority)
}

func TestPlannerSkipsInvalidDoseTime(t *testing.T) {
	store := newFakeNotificationStore()
	planner := NewPlanner(store, newFakeLogStore(), &fakeSettingsSource{}, fixedClock(time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)))

	created, err := planner.PlanMedication(context.Background(), testMedication("25:99"))
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestReplanClearsStalePendingReminders(t *testing.T) {
	store := newFakeNotificationStore()
	logs := newFakeLogStore()
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)

	planner := NewPlanner(store, logs, &fakeSettingsSource{}, fixedClock(now))
	med := testMedication("09:00")

	_, err := planner.PlanMedication(context.Background(), med)
	require.NoError(t, err)
	require.Len(t, store.byStatus(models.StatusPending), 2)

	// Schedule edited from 09:00 to 11:00: the old slots must not survive.
	med.Times = []string{"11:00"}
	created, err := planner.Replan(context.Background(), med)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	pending := store.byStatus(models.StatusPending)
	require.Len(t, pending, 2)
	for _, n := range pending {
		assert.Equal(t, "11:00", n.Data[models.DataScheduledTime])
	}
}
