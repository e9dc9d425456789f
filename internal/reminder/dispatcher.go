package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
	log "github.com/sirupsen/logrus"
)

const defaultDispatchLimit = 200

// Dispatcher scans due PENDING notifications, re-evaluates the gate for each
// and hands allowed ones to the Notifier. The PENDING→SENT transition is an
// atomic per-document claim, so concurrent scans (server job plus client
// pollers) deliver each record at most once.
type Dispatcher struct {
	notifications NotificationStore
	logs          DoseLogStore
	settings      SettingsSource
	notifier      Notifier
	limit         int
	now           func() time.Time
}

// NewDispatcher creates a dispatcher. A non-positive limit falls back to the
// default; nowFn may be nil.
func NewDispatcher(notifications NotificationStore, logs DoseLogStore, settings SettingsSource, notifier Notifier, limit int, nowFn func() time.Time) *Dispatcher {
	if limit <= 0 {
		limit = defaultDispatchLimit
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Dispatcher{
		notifications: notifications,
		logs:          logs,
		settings:      settings,
		notifier:      notifier,
		limit:         limit,
		now:           nowFn,
	}
}

// DispatchDue runs one scan tick and returns how many notifications were
// sent. Suppressed candidates stay PENDING for the next tick; display
// failures are marked FAILED and requeued later.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.now()

	due, err := d.notifications.FindDue(ctx, now, d.limit)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch due notifications: %w", err)
	}

	settingsCache := make(map[string]*models.NotificationSettings)
	sent := 0

	for i := range due {
		notif := &due[i]
		if notif.Expired(now) {
			continue
		}

		settings, ok := settingsCache[notif.UserID.Hex()]
		if !ok {
			settings, err = d.settings.GetSettings(ctx, notif.UserID)
			if err != nil {
				log.WithError(err).WithField("user_id", notif.UserID.Hex()).
					Error("Failed to load settings, skipping notification")
				continue
			}
			settingsCache[notif.UserID.Hex()] = settings
		}

		resolved, err := d.doseResolved(ctx, notif)
		if err != nil {
			log.WithError(err).WithField("notification_id", notif.ID.Hex()).
				Error("Failed to check dose status, skipping notification")
			continue
		}

		decision := EvaluateGate(notif, settings, resolved, now)
		if !decision.Allowed {
			log.WithFields(log.Fields{
				"notification_id": notif.ID.Hex(),
				"type":            notif.Type,
				"reason":          decision.Reason,
			}).Debug("Notification suppressed")
			continue
		}

		claimed, err := d.notifications.MarkSentIfPending(ctx, notif.ID, now)
		if err != nil {
			log.WithError(err).WithField("notification_id", notif.ID.Hex()).
				Error("Failed to claim notification")
			continue
		}
		if !claimed {
			// Another scan got there first.
			continue
		}

		if err := d.notifier.Display(ctx, notif); err != nil {
			log.WithError(err).WithField("notification_id", notif.ID.Hex()).
				Warn("Display failed, marking notification for retry")
			if markErr := d.notifications.MarkFailed(ctx, notif.ID); markErr != nil {
				log.WithError(markErr).WithField("notification_id", notif.ID.Hex()).
					Error("Failed to mark notification failed")
			}
			continue
		}
		sent++
	}

	if sent > 0 {
		log.WithField("sent", sent).Info("Dispatched due notifications")
	}
	return sent, nil
}

// doseResolved returns the authoritative resolution status for dose-related
// notifications, re-checked immediately before dispatch so "taken" always
// wins a race with a not-yet-dispatched reminder.
func (d *Dispatcher) doseResolved(ctx context.Context, notif *models.Notification) (bool, error) {
	if !notif.DoseRelated() {
		return false, nil
	}
	key, ok := notif.DoseKey()
	if !ok {
		return false, nil
	}
	entry, err := d.logs.FindByDoseKey(ctx, key)
	if err != nil {
		return false, err
	}
	return entry.Resolved(), nil
}
