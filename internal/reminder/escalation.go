package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// How long an overdue alert stays deliverable. Overdue alerts suppressed
// through quiet hours age out; the next loop tick produces a fresh one.
const overdueTTL = time.Hour

// ExhaustedFunc is invoked when a loop reaches its reminder cap with the
// dose still unresolved. MedTrack uses it to alert emergency contacts.
type ExhaustedFunc func(userID primitive.ObjectID, key models.DoseKey, medicationName string)

// Escalator runs one cancellable repeating check per overdue dose. Each tick
// re-reads the authoritative dose status and, while unresolved, synthesizes
// an URGENT overdue notification through the normal creation+dispatch path,
// capped by the user's maxReminders setting. The cap is durable: emitted
// counts are recovered from the store, so a restarted process never exceeds
// it.
type Escalator struct {
	notifications NotificationStore
	logs          DoseLogStore
	settings      SettingsSource
	now           func() time.Time
	after         func(time.Duration, func()) *time.Timer
	onExhausted   ExhaustedFunc

	mu    sync.Mutex
	loops map[string]*escalation
}

type escalation struct {
	key      models.DoseKey
	userID   primitive.ObjectID
	medName  string
	dosage   string
	interval time.Duration
	max      int
	emitted  int
	timer    *time.Timer
	stopped  bool
}

// NewEscalator creates an escalator. nowFn may be nil; onExhausted may be
// nil when no exhaustion action is wanted.
func NewEscalator(notifications NotificationStore, logs DoseLogStore, settings SettingsSource, nowFn func() time.Time, onExhausted ExhaustedFunc) *Escalator {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Escalator{
		notifications: notifications,
		logs:          logs,
		settings:      settings,
		now:           nowFn,
		after:         time.AfterFunc,
		onExhausted:   onExhausted,
		loops:         make(map[string]*escalation),
	}
}

// Start begins (or restarts) the escalation loop for a dose. An already
// running loop for the key is cancelled first; loops that already emitted
// their cap are not restarted.
func (e *Escalator) Start(ctx context.Context, med *models.Medication, key models.DoseKey) error {
	settings, err := e.settings.GetSettings(ctx, med.UserID)
	if err != nil {
		return fmt.Errorf("failed to load settings for escalation: %w", err)
	}

	interval := time.Duration(settings.OverdueAlerts.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	max := settings.OverdueAlerts.MaxReminders
	if max <= 0 {
		max = 3
	}

	emitted, err := e.notifications.CountOverdueForDose(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to recover escalation count: %w", err)
	}
	if int(emitted) >= max {
		return nil
	}

	// Restart semantics: never stack a second loop on the same key.
	e.Cancel(key)

	loop := &escalation{
		key:      key,
		userID:   med.UserID,
		medName:  med.Name,
		dosage:   med.Dosage,
		interval: interval,
		max:      max,
		emitted:  int(emitted),
	}

	e.mu.Lock()
	e.loops[key.String()] = loop
	loop.timer = e.after(interval, func() { e.tick(loop) })
	e.mu.Unlock()

	log.WithFields(log.Fields{
		"dose_key": key.String(),
		"interval": interval.String(),
		"max":      max,
	}).Info("Escalation loop started")
	return nil
}

// Cancel stops and removes the loop for a dose key, if one is running.
func (e *Escalator) Cancel(key models.DoseKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(key.String())
}

// Running reports whether a loop exists for the key.
func (e *Escalator) Running(key models.DoseKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.loops[key.String()]
	return ok
}

// StopAll cancels every loop; used at shutdown.
func (e *Escalator) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k := range e.loops {
		e.removeLocked(k)
	}
}

// Sweep starts loops for every dose of the given medications whose scheduled
// time has passed today without a resolved log. Called by the batch cycle
// and at bootstrap, so a process restart does not lose in-flight escalation.
func (e *Escalator) Sweep(ctx context.Context, meds []models.Medication) {
	now := e.now()
	for i := range meds {
		med := &meds[i]
		if !med.Active(now) {
			continue
		}
		for _, doseTime := range med.Times {
			key := models.NewDoseKey(med.ID, doseTime, now)
			scheduledAt, err := key.ScheduledAt(now.Location())
			if err != nil {
				continue
			}
			if !now.After(scheduledAt) {
				continue
			}
			if e.Running(key) {
				continue
			}

			entry, err := e.logs.FindByDoseKey(ctx, key)
			if err != nil {
				log.WithError(err).WithField("dose_key", key.String()).
					Warn("Failed to check dose status during sweep")
				continue
			}
			if entry.Resolved() {
				continue
			}

			if err := e.Start(ctx, med, key); err != nil {
				log.WithError(err).WithField("dose_key", key.String()).
					Error("Failed to start escalation loop")
			}
		}
	}
}

// tick runs one overdue check for a loop. Transient store failures reschedule
// without emitting; the loop is naturally self-healing.
func (e *Escalator) tick(loop *escalation) {
	e.mu.Lock()
	current, ok := e.loops[loop.key.String()]
	if !ok || current != loop || loop.stopped {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	ctx := context.Background()

	entry, err := e.logs.FindByDoseKey(ctx, loop.key)
	if err != nil {
		log.WithError(err).WithField("dose_key", loop.key.String()).
			Warn("Escalation status check failed, will retry")
		e.reschedule(loop)
		return
	}
	if entry.Resolved() {
		e.Cancel(loop.key)
		log.WithField("dose_key", loop.key.String()).Info("Escalation stopped, dose resolved")
		return
	}

	e.mu.Lock()
	capped := loop.emitted >= loop.max
	e.mu.Unlock()
	if capped {
		e.finish(loop)
		return
	}

	if err := e.emit(ctx, loop); err != nil {
		log.WithError(err).WithField("dose_key", loop.key.String()).
			Warn("Failed to emit overdue alert, will retry")
		e.reschedule(loop)
		return
	}

	e.mu.Lock()
	loop.emitted++
	done := loop.emitted >= loop.max
	e.mu.Unlock()

	if done {
		e.finish(loop)
		return
	}
	e.reschedule(loop)
}

// emit writes one URGENT overdue notification for the loop's dose. It goes
// through the same store+dispatcher path as ordinary reminders, so the gate
// (overdue switch, quiet hours) still applies at delivery time.
func (e *Escalator) emit(ctx context.Context, loop *escalation) error {
	now := e.now()

	minutesOverdue := 0
	if scheduledAt, err := loop.key.ScheduledAt(now.Location()); err == nil {
		minutesOverdue = int(now.Sub(scheduledAt) / time.Minute)
	}

	expires := now.Add(overdueTTL)
	notif := &models.Notification{
		UserID:       loop.userID,
		Type:         models.TypeDoseOverdue,
		Title:        "Missed Dose",
		Message:      fmt.Sprintf("%s (%s) was due %d minutes ago. Please take it or dismiss this dose.", loop.medName, loop.dosage, minutesOverdue),
		Priority:     models.PriorityUrgent,
		Status:       models.StatusPending,
		ScheduledFor: now,
		ExpiresAt:    &expires,
		Data: map[string]interface{}{
			models.DataMedicationID:   loop.key.MedicationID.Hex(),
			models.DataScheduledTime:  loop.key.ScheduledTime,
			models.DataDate:           loop.key.Date,
			models.DataIsOverdue:      true,
			models.DataMinutesOverdue: minutesOverdue,
			models.DataReminderCount:  loop.emitted + 1,
		},
	}
	_, err := e.notifications.Insert(ctx, notif)
	return err
}

func (e *Escalator) reschedule(loop *escalation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if current, ok := e.loops[loop.key.String()]; !ok || current != loop || loop.stopped {
		return
	}
	loop.timer = e.after(loop.interval, func() { e.tick(loop) })
}

// finish removes a capped loop and fires the exhaustion callback.
func (e *Escalator) finish(loop *escalation) {
	e.Cancel(loop.key)
	log.WithField("dose_key", loop.key.String()).Info("Escalation cap reached")
	if e.onExhausted != nil {
		e.onExhausted(loop.userID, loop.key, loop.medName)
	}
}

func (e *Escalator) removeLocked(k string) {
	if loop, ok := e.loops[k]; ok {
		loop.stopped = true
		if loop.timer != nil {
			loop.timer.Stop()
		}
		delete(e.loops, k)
	}
}
