package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/matcher"
	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
)

// CommitOutcome is the result of a commit attempt
type CommitOutcome string

const (
	CommitCreated             CommitOutcome = "created"
	CommitAlreadyExisted      CommitOutcome = "already_existed"
	CommitRejectedFullyServed CommitOutcome = "rejected_fully_served"
	// CommitRejectedClosed is returned for cancelled or complete events
	CommitRejectedClosed CommitOutcome = "rejected_closed"
)

// CommitResult describes what a commit did
type CommitResult struct {
	Outcome      CommitOutcome
	Event        model.NeedEvent
	FailedAlerts []notify.FailedAlert
}

// DecommitResult describes what a decommit did
type DecommitResult struct {
	// HadCommitment is true when a live commitment was withdrawn
	HadCommitment bool
	// CoordinatorNotified is true when the event's coordinator was sent the withdrawal
	CoordinatorNotified bool
	FailedAlerts        []notify.FailedAlert
}

// Commit records that a volunteer will serve an event.
//
// The fully-served check and the write run in one transaction holding the
// event's row lock, so concurrent commits cannot over-fill the event. The
// confirmation or "enough volunteers" message is sent after the transaction.
func Commit(
	ctx context.Context,
	store db.Store,
	notifier Notifier,
	clock Clock,
	logger *zap.Logger,
	volunteerID string,
	eventID string,
) (*CommitResult, error) {
	logger.Debug("Starting commit", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))

	var outcome CommitOutcome
	var vol *model.Volunteer
	var ev *model.NeedEvent
	var et *model.EventType

	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error

		// Step 1: Resolve the pair, locking the event row
		vol, ev, err = resolvePair(ctx, tx, volunteerID, eventID, true)
		if err != nil {
			return err
		}
		et, err = lookupEventType(ctx, tx, ev.EventTypeID, logger)
		if err != nil {
			return err
		}

		// Step 2: An existing commitment makes this a no-op
		existing, err := getResponse(ctx, tx, volunteerID, eventID)
		if err != nil {
			return err
		}
		if existing != nil && existing.State == model.ResponseCommitted {
			outcome = CommitAlreadyExisted
			return nil
		}

		// Step 3: Closed events take no new commitments
		if !ev.IsOpen() {
			outcome = CommitRejectedClosed
			return nil
		}

		// Step 4: Reject if the event is already fully served
		count, err := committedCount(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if matcher.IsFullyServed(ev, count) {
			outcome = CommitRejectedFullyServed
			return nil
		}

		// Step 5: Record the commitment, replacing any decline for the pair
		if err := tx.PutResponse(ctx, &model.Response{
			VolunteerID: volunteerID,
			EventID:     eventID,
			State:       model.ResponseCommitted,
			UpdatedAt:   clock.Now(),
		}); err != nil {
			return fmt.Errorf("failed to record commitment: %w", err)
		}
		outcome = CommitCreated
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &CommitResult{Outcome: outcome, Event: *ev, FailedAlerts: []notify.FailedAlert{}}

	// Step 6: Notify the volunteer now that the ledger is settled
	switch outcome {
	case CommitCreated:
		logger.Info("Commitment created", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
		result.FailedAlerts = notifier.SendConfirmation(ctx, vol, ev, et)
	case CommitRejectedFullyServed:
		logger.Info("Commitment rejected, event fully served",
			zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
		result.FailedAlerts = notifier.SendNoLongerNeeded(ctx, vol, ev, et)
	case CommitAlreadyExisted:
		logger.Info("Commitment already exists", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
	case CommitRejectedClosed:
		logger.Info("Commitment rejected, event closed",
			zap.String("volunteer_id", volunteerID),
			zap.String("event_id", eventID),
			zap.Bool("cancelled", ev.Cancelled),
			zap.Bool("complete", ev.Complete))
	}

	return result, nil
}

// Decommit records that a volunteer will not serve an event.
//
// Withdrawing a live commitment notifies the event's coordinator. A decline with
// no prior commitment notifies nobody. Either way the pair ends with exactly one
// declined row.
func Decommit(
	ctx context.Context,
	store db.Store,
	notifier Notifier,
	clock Clock,
	logger *zap.Logger,
	volunteerID string,
	eventID string,
) (*DecommitResult, error) {
	logger.Debug("Starting decommit", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))

	result := &DecommitResult{FailedAlerts: []notify.FailedAlert{}}
	var vol, coordinator *model.Volunteer
	var ev *model.NeedEvent
	var et *model.EventType

	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error

		// Step 1: Resolve the pair, locking the event row
		vol, ev, err = resolvePair(ctx, tx, volunteerID, eventID, true)
		if err != nil {
			return err
		}

		// Step 2: Replace whatever the pair held with a decline
		existing, err := getResponse(ctx, tx, volunteerID, eventID)
		if err != nil {
			return err
		}
		if existing != nil && existing.State == model.ResponseDeclined {
			logger.Debug("Decline already recorded", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
			return nil
		}
		result.HadCommitment = existing != nil && existing.State == model.ResponseCommitted

		if err := tx.PutResponse(ctx, &model.Response{
			VolunteerID: volunteerID,
			EventID:     eventID,
			State:       model.ResponseDeclined,
			UpdatedAt:   clock.Now(),
		}); err != nil {
			return fmt.Errorf("failed to record decline: %w", err)
		}

		if !result.HadCommitment {
			return nil
		}

		// Step 3: Look up who to tell about the withdrawal
		et, err = lookupEventType(ctx, tx, ev.EventTypeID, logger)
		if err != nil {
			return err
		}
		if ev.CreatedBy == "" {
			return nil
		}
		coordinator, err = tx.GetVolunteer(ctx, ev.CreatedBy)
		if err != nil {
			if db.IsNotFound(err) {
				logger.Warn("Coordinator for event not found", zap.String("event_id", eventID), zap.String("coordinator_id", ev.CreatedBy))
				coordinator = nil
				return nil
			}
			return fmt.Errorf("failed to fetch coordinator: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 4: Notify the coordinator after the ledger is settled
	if result.HadCommitment {
		logger.Info("Commitment withdrawn", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
		if coordinator == nil {
			logger.Warn("No coordinator to notify of withdrawal", zap.String("event_id", eventID))
		} else {
			result.FailedAlerts = notifier.SendCoordinatorDecommit(ctx, coordinator, vol, ev, et)
			result.CoordinatorNotified = true
		}
	} else {
		logger.Info("Decline recorded", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
	}

	return result, nil
}

// IsFullyServed reports whether an event has as many commitments as it needs
func IsFullyServed(ctx context.Context, store db.Store, eventID string) (bool, error) {
	var served bool
	err := store.WithTx(ctx, func(tx db.Tx) error {
		ev, err := tx.GetNeedEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to fetch need event: %w", err)
		}
		count, err := committedCount(ctx, tx, eventID)
		if err != nil {
			return err
		}
		served = matcher.IsFullyServed(ev, count)
		return nil
	})
	return served, err
}

// CommittedVolunteers returns the volunteers holding a live commitment to an event
func CommittedVolunteers(ctx context.Context, store db.Store, eventID string) ([]model.Volunteer, error) {
	var volunteers []model.Volunteer
	err := store.WithTx(ctx, func(tx db.Tx) error {
		if _, err := tx.GetNeedEvent(ctx, eventID); err != nil {
			return fmt.Errorf("failed to fetch need event: %w", err)
		}
		var err error
		volunteers, err = committedVolunteers(ctx, tx, eventID)
		return err
	})
	return volunteers, err
}

// AvailableEventsFor returns the open events a volunteer could still commit to
func AvailableEventsFor(ctx context.Context, store db.Store, logger *zap.Logger, volunteerID string) ([]model.NeedEvent, error) {
	logger.Debug("Finding available events", zap.String("volunteer_id", volunteerID))

	var result []model.NeedEvent
	err := store.WithTx(ctx, func(tx db.Tx) error {
		vol, err := tx.GetVolunteer(ctx, volunteerID)
		if err != nil {
			return fmt.Errorf("failed to fetch volunteer: %w", err)
		}

		events, err := tx.ListOpenNeedEvents(ctx)
		if err != nil {
			return fmt.Errorf("failed to list open events: %w", err)
		}

		committed, err := tx.ListCommittedEvents(ctx, volunteerID)
		if err != nil {
			return fmt.Errorf("failed to list committed events: %w", err)
		}

		counts := make(map[string]int, len(events))
		for _, ev := range events {
			n, err := committedCount(ctx, tx, ev.ID)
			if err != nil {
				return err
			}
			counts[ev.ID] = n
		}

		result = matcher.EventsForVolunteer(vol, events, committed, counts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Found available events", zap.String("volunteer_id", volunteerID), zap.Int("count", len(result)))
	return result, nil
}

// resolvePair loads a volunteer and an event, optionally locking the event row.
// An unresolvable ID yields a MissingEntityError wrapping db.ErrNotFound.
func resolvePair(ctx context.Context, tx db.Tx, volunteerID, eventID string, lock bool) (*model.Volunteer, *model.NeedEvent, error) {
	vol, err := tx.GetVolunteer(ctx, volunteerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, &MissingEntityError{VolunteerID: volunteerID, EventID: eventID, Err: err}
		}
		return nil, nil, fmt.Errorf("failed to fetch volunteer: %w", err)
	}

	var ev *model.NeedEvent
	if lock {
		ev, err = tx.LockNeedEvent(ctx, eventID)
	} else {
		ev, err = tx.GetNeedEvent(ctx, eventID)
	}
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, &MissingEntityError{VolunteerID: volunteerID, EventID: eventID, Err: err}
		}
		return nil, nil, fmt.Errorf("failed to fetch need event: %w", err)
	}

	return vol, ev, nil
}

// getResponse returns the pair's ledger row, or nil when there is none
func getResponse(ctx context.Context, tx db.Tx, volunteerID, eventID string) (*model.Response, error) {
	resp, err := tx.GetResponse(ctx, volunteerID, eventID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch response: %w", err)
	}
	return resp, nil
}

func committedCount(ctx context.Context, tx db.Tx, eventID string) (int, error) {
	responses, err := tx.ListResponsesForEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to list responses: %w", err)
	}
	count := 0
	for _, r := range responses {
		if r.State == model.ResponseCommitted {
			count++
		}
	}
	return count, nil
}

func committedVolunteers(ctx context.Context, tx db.Tx, eventID string) ([]model.Volunteer, error) {
	responses, err := tx.ListResponsesForEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	volunteers := []model.Volunteer{}
	for _, r := range responses {
		if r.State != model.ResponseCommitted {
			continue
		}
		vol, err := tx.GetVolunteer(ctx, r.VolunteerID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch committed volunteer: %w", err)
		}
		volunteers = append(volunteers, *vol)
	}
	return volunteers, nil
}

// lookupEventType returns the event's type, or nil with a warning if it has gone missing
func lookupEventType(ctx context.Context, tx db.Tx, eventTypeID string, logger *zap.Logger) (*model.EventType, error) {
	et, err := tx.GetEventType(ctx, eventTypeID)
	if err != nil {
		if db.IsNotFound(err) {
			logger.Warn("Event type not found", zap.String("event_type_id", eventTypeID))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch event type: %w", err)
	}
	return et, nil
}
