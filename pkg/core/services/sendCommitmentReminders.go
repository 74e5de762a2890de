package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
)

// ReminderSent represents a committed volunteer who was sent a reminder
type ReminderSent struct {
	VolunteerID   string
	VolunteerName string
	EventID       string
}

type plannedReminder struct {
	vol model.Volunteer
	ev  model.NeedEvent
	et  *model.EventType
}

// SendCommitmentReminders reminds committed volunteers of events starting within lead.
// Each commitment is reminded at most once.
func SendCommitmentReminders(
	ctx context.Context,
	store db.Store,
	notifier Notifier,
	clock Clock,
	loc *time.Location,
	lead time.Duration,
	logger *zap.Logger,
) ([]ReminderSent, []notify.FailedAlert, error) {
	logger.Debug("Starting sendCommitmentReminders", zap.Duration("lead", lead))

	now := clock.Now()
	var planned []plannedReminder

	err := store.WithTx(ctx, func(tx db.Tx) error {
		planned = nil

		// Step 1: Find open events starting within the lead time
		events, err := tx.ListOpenNeedEvents(ctx)
		if err != nil {
			return fmt.Errorf("failed to list open events: %w", err)
		}

		for i := range events {
			ev := events[i]
			startsAt := calendarDay(ev.Date, loc).Add(time.Duration(ev.TimeOfNeed) * time.Minute)
			if startsAt.Before(now) || startsAt.Sub(now) > lead {
				continue
			}

			// Step 2: Pick committed volunteers not yet reminded
			responses, err := tx.ListResponsesForEvent(ctx, ev.ID)
			if err != nil {
				return fmt.Errorf("failed to list responses: %w", err)
			}

			var et *model.EventType
			for _, r := range responses {
				if r.State != model.ResponseCommitted || r.RemindedAt != nil {
					continue
				}
				if et == nil {
					if et, err = lookupEventType(ctx, tx, ev.EventTypeID, logger); err != nil {
						return err
					}
				}

				vol, err := tx.GetVolunteer(ctx, r.VolunteerID)
				if err != nil {
					return fmt.Errorf("failed to fetch volunteer: %w", err)
				}

				// Step 3: Mark before sending so a failed send is not retried every run
				if err := tx.MarkReminded(ctx, r.VolunteerID, ev.ID, now); err != nil {
					return fmt.Errorf("failed to mark reminder: %w", err)
				}
				planned = append(planned, plannedReminder{vol: *vol, ev: ev, et: et})
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("Found commitments needing reminders", zap.Int("count", len(planned)))

	// Step 4: Send reminders
	remindersSent := []ReminderSent{}
	failedAlerts := []notify.FailedAlert{}
	for _, p := range planned {
		logger.Info("Sending commitment reminder",
			zap.String("volunteer_id", p.vol.ID),
			zap.String("event_id", p.ev.ID))

		failed := notifier.SendReminder(ctx, &p.vol, &p.ev, p.et)
		failedAlerts = append(failedAlerts, failed...)
		remindersSent = append(remindersSent, ReminderSent{
			VolunteerID:   p.vol.ID,
			VolunteerName: p.vol.Name(),
			EventID:       p.ev.ID,
		})
	}

	return remindersSent, failedAlerts, nil
}
