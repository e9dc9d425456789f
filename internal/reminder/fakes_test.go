package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeNotificationStore is an in-memory NotificationStore.
type fakeNotificationStore struct {
	mu        sync.Mutex
	notifs    []*models.Notification
	insertErr error
	claimFn   func(id primitive.ObjectID) (bool, error)
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{}
}

func (s *fakeNotificationStore) Insert(_ context.Context, notif *models.Notification) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return primitive.NilObjectID, s.insertErr
	}
	stored := *notif
	stored.ID = primitive.NewObjectID()
	if stored.Status == "" {
		stored.Status = models.StatusPending
	}
	stored.CreatedAt = time.Now()
	s.notifs = append(s.notifs, &stored)
	notif.ID = stored.ID
	return stored.ID, nil
}

func (s *fakeNotificationStore) FindDue(_ context.Context, now time.Time, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.Notification
	for _, n := range s.notifs {
		if n.Status != models.StatusPending || n.ScheduledFor.After(now) || n.Expired(now) {
			continue
		}
		due = append(due, *n)
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (s *fakeNotificationStore) FindScheduledDose(_ context.Context, medicationID primitive.ObjectID, scheduledTime string, offsetMinutes int, date string) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []models.Notification
	for _, n := range s.notifs {
		if n.Type != models.TypeDoseReminder {
			continue
		}
		if n.Status != models.StatusPending && n.Status != models.StatusSent {
			continue
		}
		if n.Data[models.DataMedicationID] != medicationID.Hex() ||
			n.Data[models.DataScheduledTime] != scheduledTime ||
			n.Data[models.DataOffsetMinutes] != offsetMinutes ||
			n.Data[models.DataDate] != date {
			continue
		}
		found = append(found, *n)
	}
	return found, nil
}

func (s *fakeNotificationStore) MarkSentIfPending(_ context.Context, id primitive.ObjectID, sentAt time.Time) (bool, error) {
	if s.claimFn != nil {
		return s.claimFn(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifs {
		if n.ID == id {
			if n.Status != models.StatusPending {
				return false, nil
			}
			n.Status = models.StatusSent
			at := sentAt
			n.SentAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeNotificationStore) MarkFailed(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifs {
		if n.ID == id {
			n.Status = models.StatusFailed
			n.SentAt = nil
		}
	}
	return nil
}

func (s *fakeNotificationStore) CountOverdueForDose(_ context.Context, key models.DoseKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.notifs {
		if n.Type == models.TypeDoseOverdue && s.matchesKeyLocked(n, key) {
			count++
		}
	}
	return count, nil
}

func (s *fakeNotificationStore) DeletePendingForDose(_ context.Context, key models.DoseKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*models.Notification
	var deleted int64
	for _, n := range s.notifs {
		if n.Status == models.StatusPending && s.matchesKeyLocked(n, key) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	s.notifs = kept
	return deleted, nil
}

func (s *fakeNotificationStore) DeletePendingForMedication(_ context.Context, medicationID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*models.Notification
	var deleted int64
	for _, n := range s.notifs {
		if n.Status == models.StatusPending && n.Data != nil && n.Data[models.DataMedicationID] == medicationID.Hex() {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	s.notifs = kept
	return deleted, nil
}

func (s *fakeNotificationStore) matchesKeyLocked(n *models.Notification, key models.DoseKey) bool {
	if n.Data == nil {
		return false
	}
	return n.Data[models.DataMedicationID] == key.MedicationID.Hex() &&
		n.Data[models.DataScheduledTime] == key.ScheduledTime &&
		n.Data[models.DataDate] == key.Date
}

func (s *fakeNotificationStore) byStatus(status string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifs {
		if n.Status == status {
			out = append(out, *n)
		}
	}
	return out
}

func (s *fakeNotificationStore) byType(notifType string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifs {
		if n.Type == notifType {
			out = append(out, *n)
		}
	}
	return out
}

// fakeLogStore is an in-memory DoseLogStore. blockUpsert, when set, makes
// Upsert wait until released, for concurrency tests.
type fakeLogStore struct {
	mu        sync.Mutex
	logs      map[string]*models.MedicationLog
	findErr   error
	upsertErr error
	upserts   int

	blockUpsert   chan struct{}
	upsertStarted chan struct{}
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{logs: make(map[string]*models.MedicationLog)}
}

func (s *fakeLogStore) FindByDoseKey(_ context.Context, key models.DoseKey) (*models.MedicationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	entry, ok := s.logs[key.String()]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (s *fakeLogStore) Upsert(_ context.Context, entry *models.MedicationLog) (*models.MedicationLog, error) {
	if s.upsertStarted != nil {
		s.upsertStarted <- struct{}{}
	}
	if s.blockUpsert != nil {
		<-s.blockUpsert
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upserts++

	k := entry.Key().String()
	existing, ok := s.logs[k]
	if !ok {
		stored := *entry
		stored.ID = primitive.NewObjectID()
		stored.CreatedAt = time.Now()
		stored.UpdatedAt = stored.CreatedAt
		s.logs[k] = &stored
		copied := stored
		return &copied, nil
	}
	existing.Taken = entry.Taken
	existing.Dismissed = entry.Dismissed
	existing.TakenAt = entry.TakenAt
	existing.UpdatedAt = time.Now()
	copied := *existing
	return &copied, nil
}

func (s *fakeLogStore) put(entry *models.MedicationLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	s.logs[entry.Key().String()] = entry
}

// fakeSettingsSource returns the same settings for every user.
type fakeSettingsSource struct {
	settings *models.NotificationSettings
	err      error
}

func (s *fakeSettingsSource) GetSettings(_ context.Context, userID primitive.ObjectID) (*models.NotificationSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.settings != nil {
		return s.settings, nil
	}
	return models.DefaultNotificationSettings(userID), nil
}

// fakeNotifier records displayed notifications.
type fakeNotifier struct {
	mu        sync.Mutex
	displayed []models.Notification
	err       error
}

func (n *fakeNotifier) Display(_ context.Context, notif *models.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.displayed = append(n.displayed, *notif)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.displayed)
}
