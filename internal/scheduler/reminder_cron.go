package cron

import (
	"context"

	"github.com/Amina2304/MedTrack/internal/jobs"
	"github.com/Amina2304/MedTrack/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartReminderCronJobs wires the periodic work: the minutely plan/dispatch
// cycle, hourly cleanup, daily tip and report planning and the supply scan.
func StartReminderCronJobs(reminderService *services.ReminderService, notificationService *services.NotificationService, supplyNotifier *jobs.SupplyNotifier) *cron.Cron {
	c := cron.New()

	// Plan reminders, dispatch due notifications, sweep overdue doses
	c.AddFunc("* * * * *", func() {
		err := reminderService.RunCycle(context.Background())
		if err != nil {
			logrus.WithError(err).Error("Reminder cycle failed")
		}
	})

	// Requeue failed deliveries, purge expired records
	c.AddFunc("@hourly", func() {
		err := reminderService.Maintenance(context.Background())
		if err != nil {
			logrus.WithError(err).Error("Notification maintenance failed")
		}
	})

	// Daily health tips
	c.AddFunc("0 0 * * *", func() {
		err := notificationService.PlanDailyHealthTips(context.Background())
		if err != nil {
			logrus.WithError(err).Error("PlanDailyHealthTips failed")
		}
	})

	// Weekly progress reports (planned daily, gated by configured weekday)
	c.AddFunc("0 0 * * *", func() {
		err := notificationService.PlanWeeklyProgressReports(context.Background())
		if err != nil {
			logrus.WithError(err).Error("PlanWeeklyProgressReports failed")
		}
	})

	// Low supply scan
	c.AddFunc("0 9 * * *", func() {
		err := supplyNotifier.RunDailyScan(context.Background())
		if err != nil {
			logrus.WithError(err).Error("Supply scan failed")
		}
	})

	c.Start()
	return c
}
