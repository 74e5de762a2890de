package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/matcher"
	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
)

// CheckSkipReason explains why a check sent nothing without being rate limited
type CheckSkipReason string

const (
	SkipNone        CheckSkipReason = ""
	SkipNotFound    CheckSkipReason = "not_found"
	SkipClosed      CheckSkipReason = "closed"
	SkipFullyServed CheckSkipReason = "fully_served"
)

// AlertSent represents a volunteer who was sent an alert for an event
type AlertSent struct {
	VolunteerID   string
	VolunteerName string
}

// CheckResult describes one CheckOneEvent call.
// Attempted is false only when the cooldown suppressed the alert.
type CheckResult struct {
	EventID      string
	Attempted    bool
	Skipped      CheckSkipReason
	Alerted      []AlertSent
	FailedAlerts []notify.FailedAlert
}

// CheckAllResult summarises a sweep over every open event
type CheckAllResult struct {
	MarkedComplete []string
	Checks         []CheckResult
}

// AlertSettings holds the pacing settings for alerting
type AlertSettings struct {
	Cooldown time.Duration
	Location *time.Location
}

type plannedAlert struct {
	vol   model.Volunteer
	token string
}

// CheckOneEvent alerts every eligible volunteer about an event that still needs help.
//
// Missing, closed and fully served events are skipped. When honorLastAlertTime
// is set and the event was alerted within the cooldown, nothing is sent and
// Attempted is false. Tokens and the new LastAlertTime are persisted in the
// transaction; messages go out after it commits, and delivery failures are
// collected rather than returned.
func CheckOneEvent(
	ctx context.Context,
	store db.Store,
	notifier Notifier,
	clock Clock,
	settings AlertSettings,
	logger *zap.Logger,
	eventID string,
	honorLastAlertTime bool,
) (*CheckResult, error) {
	logger.Debug("Starting checkOneEvent", zap.String("event_id", eventID), zap.Bool("honor_last_alert_time", honorLastAlertTime))

	result := &CheckResult{EventID: eventID, Alerted: []AlertSent{}, FailedAlerts: []notify.FailedAlert{}}
	var ev *model.NeedEvent
	var et *model.EventType
	var planned []plannedAlert

	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		planned = nil

		// Step 1: Fetch the event, holding its row so concurrent checks serialise
		ev, err = tx.LockNeedEvent(ctx, eventID)
		if err != nil {
			if db.IsNotFound(err) {
				logger.Info("Need event not found, nothing to check", zap.String("event_id", eventID))
				result.Attempted = true
				result.Skipped = SkipNotFound
				return nil
			}
			return fmt.Errorf("failed to fetch need event: %w", err)
		}
		if !ev.IsOpen() {
			logger.Info("Need event is closed, nothing to check",
				zap.String("event_id", eventID), zap.Bool("cancelled", ev.Cancelled), zap.Bool("complete", ev.Complete))
			result.Attempted = true
			result.Skipped = SkipClosed
			return nil
		}

		// Step 2: A fully served event needs no alert
		responses, err := tx.ListResponsesForEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to list responses: %w", err)
		}
		responded := make(map[string]bool, len(responses))
		committed := 0
		for _, r := range responses {
			responded[r.VolunteerID] = true
			if r.State == model.ResponseCommitted {
				committed++
			}
		}
		if matcher.IsFullyServed(ev, committed) {
			logger.Info("Need event is fully served, no alert needed", zap.String("event_id", eventID))
			result.Attempted = true
			result.Skipped = SkipFullyServed
			return nil
		}

		// Step 3: Compute alertable volunteers, minus anyone who already answered this event
		alertable, err := alertableVolunteers(ctx, tx, ev)
		if err != nil {
			return err
		}
		recipients := []model.Volunteer{}
		for _, vol := range alertable {
			if responded[vol.ID] {
				continue
			}
			recipients = append(recipients, vol)
		}
		logger.Debug("Found alertable volunteers",
			zap.String("event_id", eventID),
			zap.Int("alertable", len(alertable)),
			zap.Int("recipients", len(recipients)))

		// Step 4: Respect the per-event cooldown
		now := clock.Now()
		if honorLastAlertTime && now.Add(-settings.Cooldown).Unix() < ev.LastAlertTime {
			logger.Info("Not alerting, need event was alerted recently",
				zap.String("event_id", eventID),
				zap.Time("last_alert_time", time.Unix(ev.LastAlertTime, 0)))
			result.Attempted = false
			return nil
		}

		// Step 5: Mint or reuse each recipient's response token
		for _, vol := range recipients {
			token, err := ensureToken(ctx, tx, vol.ID, eventID, now)
			if err != nil {
				return err
			}
			planned = append(planned, plannedAlert{vol: vol, token: token})
		}

		et, err = lookupEventType(ctx, tx, ev.EventTypeID, logger)
		if err != nil {
			return err
		}

		// Step 6: Reset the clock even when no one was eligible
		ev.LastAlertTime = now.Unix()
		if err := tx.UpdateNeedEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to update last alert time: %w", err)
		}

		result.Attempted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 7: Deliver alerts after the transaction commits
	for _, p := range planned {
		logger.Info("Alerting volunteer",
			zap.String("volunteer_id", p.vol.ID),
			zap.String("user_name", p.vol.UserName),
			zap.String("event_id", eventID))

		failed := notifier.SendEventAlert(ctx, &p.vol, ev, et, p.token)
		result.FailedAlerts = append(result.FailedAlerts, failed...)
		result.Alerted = append(result.Alerted, AlertSent{VolunteerID: p.vol.ID, VolunteerName: p.vol.Name()})
	}

	logger.Debug("Finished checkOneEvent",
		zap.String("event_id", eventID),
		zap.Bool("attempted", result.Attempted),
		zap.Int("alerted", len(result.Alerted)),
		zap.Int("failed", len(result.FailedAlerts)))

	return result, nil
}

// CheckAllEvents marks open events whose date has passed as complete and then
// checks every remaining open event, honoring the cooldown
func CheckAllEvents(
	ctx context.Context,
	store db.Store,
	notifier Notifier,
	clock Clock,
	settings AlertSettings,
	logger *zap.Logger,
) (*CheckAllResult, error) {
	logger.Debug("Starting checkAllEvents")

	result := &CheckAllResult{MarkedComplete: []string{}, Checks: []CheckResult{}}
	var open []model.NeedEvent

	// Step 1: Close out events from previous days
	today := startOfDay(clock.Now(), settings.Location)
	err := store.WithTx(ctx, func(tx db.Tx) error {
		result.MarkedComplete = []string{}
		open = nil

		events, err := tx.ListOpenNeedEvents(ctx)
		if err != nil {
			return fmt.Errorf("failed to list open events: %w", err)
		}
		for i := range events {
			ev := events[i]
			if calendarDay(ev.Date, settings.Location).Before(today) {
				ev.Complete = true
				if err := tx.UpdateNeedEvent(ctx, &ev); err != nil {
					return fmt.Errorf("failed to mark event complete: %w", err)
				}
				result.MarkedComplete = append(result.MarkedComplete, ev.ID)
				continue
			}
			open = append(open, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Marked past events complete", zap.Int("count", len(result.MarkedComplete)))

	// Step 2: Check each remaining event; one failure does not stop the sweep
	for _, ev := range open {
		check, err := CheckOneEvent(ctx, store, notifier, clock, settings, logger, ev.ID, true)
		if err != nil {
			logger.Error("Failed to check need event", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		result.Checks = append(result.Checks, *check)
	}

	logger.Info("Checked all open events",
		zap.Int("checked", len(result.Checks)),
		zap.Int("marked_complete", len(result.MarkedComplete)))

	return result, nil
}

// AlertableVolunteers returns the volunteers available for an event who hold no
// commitment to an overlapping event
func AlertableVolunteers(ctx context.Context, store db.Store, eventID string) ([]model.Volunteer, error) {
	var result []model.Volunteer
	err := store.WithTx(ctx, func(tx db.Tx) error {
		ev, err := tx.GetNeedEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to fetch need event: %w", err)
		}
		result, err = alertableVolunteers(ctx, tx, ev)
		return err
	})
	return result, err
}

func alertableVolunteers(ctx context.Context, tx db.Tx, ev *model.NeedEvent) ([]model.Volunteer, error) {
	volunteers, err := tx.ListVolunteers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}

	available := matcher.AvailableVolunteers(ev, volunteers)
	committed := make(map[string][]model.NeedEvent, len(available))
	for _, vol := range available {
		events, err := tx.ListCommittedEvents(ctx, vol.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list committed events: %w", err)
		}
		committed[vol.ID] = events
	}

	return matcher.AlertableVolunteers(ev, available, committed), nil
}

// ensureToken returns the pair's response token, minting one on first use
func ensureToken(ctx context.Context, tx db.Tx, volunteerID, eventID string, now time.Time) (string, error) {
	existing, err := tx.GetResponseToken(ctx, volunteerID, eventID)
	if err == nil {
		return existing.Token, nil
	}
	if !db.IsNotFound(err) {
		return "", fmt.Errorf("failed to fetch response token: %w", err)
	}

	tok := &model.ResponseToken{
		Token:       uuid.New().String(),
		VolunteerID: volunteerID,
		EventID:     eventID,
		CreatedAt:   now,
	}
	if err := tx.InsertResponseToken(ctx, tok); err != nil {
		return "", fmt.Errorf("failed to store response token: %w", err)
	}
	return tok.Token, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// calendarDay reinterprets a stored date's calendar day in loc
func calendarDay(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
