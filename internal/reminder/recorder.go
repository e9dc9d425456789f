package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Amina2304/MedTrack/internal/events"
	"github.com/Amina2304/MedTrack/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrActionInProgress is returned when another call is already resolving the
// same dose. Callers report "action in progress" and must not retry
// immediately; this is not a user-visible failure.
var ErrActionInProgress = errors.New("dose action already in progress")

// How long a resolved dose stays in the local idempotency cache.
const resolvedCacheTTL = 10 * time.Minute

// Outcome is the result of a mark-taken or mark-dismissed call. Already is
// the recognized duplicate case: the dose was resolved before this call, the
// write was skipped and the caller reports "already recorded".
type Outcome struct {
	Log     *models.MedicationLog
	Already bool
}

// ResolvedFunc is called after a successful resolving write; MedTrack uses
// it to decrement medication supply on taken doses.
type ResolvedFunc func(ctx context.Context, key models.DoseKey, taken bool)

// Recorder performs the exactly-once dose resolution. Concurrency control is
// layered: a fast local cache of recently resolved doses, the per-dose
// action lock, and a find-or-create write against the store (the document
// update is the atomicity boundary).
type Recorder struct {
	logs          DoseLogStore
	notifications NotificationStore
	locks         *LockManager
	escalator     *Escalator
	bus           events.Bus
	now           func() time.Time
	cooldown      time.Duration
	onResolved    ResolvedFunc

	mu       sync.Mutex
	resolved map[string]time.Time
}

// NewRecorder creates a recorder. cooldown delays the lock release after a
// successful write so an in-flight duplicate trigger is rejected rather than
// raced; nowFn and onResolved may be nil.
func NewRecorder(logs DoseLogStore, notifications NotificationStore, locks *LockManager, escalator *Escalator, bus events.Bus, cooldown time.Duration, nowFn func() time.Time, onResolved ResolvedFunc) *Recorder {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Recorder{
		logs:          logs,
		notifications: notifications,
		locks:         locks,
		escalator:     escalator,
		bus:           bus,
		now:           nowFn,
		cooldown:      cooldown,
		onResolved:    onResolved,
		resolved:      make(map[string]time.Time),
	}
}

// MarkTaken records the dose as taken. Duplicate calls return Already=true;
// a concurrent call returns ErrActionInProgress.
func (r *Recorder) MarkTaken(ctx context.Context, userID primitive.ObjectID, key models.DoseKey) (*Outcome, error) {
	return r.resolve(ctx, userID, key, true)
}

// MarkDismissed records the dose as dismissed without taking it.
func (r *Recorder) MarkDismissed(ctx context.Context, userID primitive.ObjectID, key models.DoseKey) (*Outcome, error) {
	return r.resolve(ctx, userID, key, false)
}

func (r *Recorder) resolve(ctx context.Context, userID primitive.ObjectID, key models.DoseKey, taken bool) (*Outcome, error) {
	// Fast local idempotency check: the common duplicate (double tap,
	// notification action right after the UI button) never reaches the
	// store.
	if r.recentlyResolved(key) {
		return &Outcome{Already: true}, nil
	}

	if !r.locks.TryAcquire(key) {
		return nil, ErrActionInProgress
	}

	existing, err := r.logs.FindByDoseKey(ctx, key)
	if err != nil {
		r.locks.Release(key)
		return nil, fmt.Errorf("failed to check dose status: %w", err)
	}
	if existing.Resolved() {
		r.cacheResolved(key)
		r.locks.Release(key)
		return &Outcome{Log: existing, Already: true}, nil
	}

	now := r.now()
	entry := &models.MedicationLog{
		UserID:        userID,
		MedicationID:  key.MedicationID,
		ScheduledTime: key.ScheduledTime,
		Date:          key.Date,
		Taken:         taken,
		Dismissed:     !taken,
	}
	if taken {
		entry.TakenAt = &now
	}

	saved, err := r.logs.Upsert(ctx, entry)
	if err != nil {
		// The write failed: release immediately so the user can retry.
		r.locks.Release(key)
		return nil, fmt.Errorf("failed to record dose: %w", err)
	}

	r.cacheResolved(key)
	r.escalator.Cancel(key)

	// Clear still-pending reminders for the dose. The gate re-checks the log
	// anyway; this keeps the queue from carrying records that can never
	// fire.
	if _, err := r.notifications.DeletePendingForDose(ctx, key); err != nil {
		log.WithError(err).WithField("dose_key", key.String()).
			Warn("Failed to clear pending reminders for resolved dose")
	}

	if r.onResolved != nil {
		r.onResolved(ctx, key, taken)
	}

	if err := r.bus.Publish(ctx, events.Event{
		Name:   events.DoseUpdated,
		UserID: userID.Hex(),
		Fields: map[string]string{
			"medication_id":  key.MedicationID.Hex(),
			"scheduled_time": key.ScheduledTime,
			"date":           key.Date,
		},
	}); err != nil {
		log.WithError(err).Warn("Failed to broadcast dose update")
	}

	r.locks.ReleaseAfter(key, r.cooldown)

	log.WithFields(log.Fields{
		"dose_key": key.String(),
		"taken":    taken,
	}).Info("Dose resolved")
	return &Outcome{Log: saved}, nil
}

func (r *Recorder) recentlyResolved(key models.DoseKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, ok := r.resolved[key.String()]
	if !ok {
		return false
	}
	if r.now().Sub(at) > resolvedCacheTTL {
		delete(r.resolved, key.String())
		return false
	}
	return true
}

func (r *Recorder) cacheResolved(key models.DoseKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, at := range r.resolved {
		if now.Sub(at) > resolvedCacheTTL {
			delete(r.resolved, k)
		}
	}
	r.resolved[key.String()] = now
}
