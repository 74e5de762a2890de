package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
)

// CreateNeedEventInput holds a coordinator's request for help.
// Date is YYYY-MM-DD and TimeOfNeed is HH:MM, both in the configured location.
type CreateNeedEventInput struct {
	EventType       string `validate:"required"`
	Date            string `validate:"required,datetime=2006-01-02"`
	TimeOfNeed      string `validate:"required,datetime=15:04"`
	Duration        int    `validate:"required,min=1"`
	VolunteerCount  int    `validate:"required,min=1"`
	AffectedPersons int    `validate:"min=0"`
	Location        string `validate:"max=200"`
	Notes           string `validate:"max=1000"`
	CreatedBy       string
}

// CancelResult describes the notifications sent for a cancelled event
type CancelResult struct {
	AlreadyCancelled bool
	Notified         []AlertSent
	FailedAlerts     []notify.FailedAlert
}

// CreateEventType adds a kind of need
func CreateEventType(ctx context.Context, store db.Store, logger *zap.Logger, name, description string) (*model.EventType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("event type name is required")
	}

	et := &model.EventType{ID: uuid.New().String(), Name: name, Description: description}
	err := store.WithTx(ctx, func(tx db.Tx) error {
		return tx.InsertEventType(ctx, et)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event type: %w", err)
	}

	logger.Info("Event type created", zap.String("event_type_id", et.ID), zap.String("name", et.Name))
	return et, nil
}

// ListEventTypes returns every event type
func ListEventTypes(ctx context.Context, store db.Store) ([]model.EventType, error) {
	var types []model.EventType
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		types, err = tx.ListEventTypes(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list event types: %w", err)
	}
	return types, nil
}

// CreateNeedEvent records a new need. EventType may be a type's ID or its name.
func CreateNeedEvent(ctx context.Context, store db.Store, loc *time.Location, logger *zap.Logger, input CreateNeedEventInput) (*model.NeedEvent, error) {
	logger.Debug("Creating need event", zap.String("event_type", input.EventType), zap.String("date", input.Date))

	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid need event: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	date, err := time.ParseInLocation("2006-01-02", input.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", input.Date, err)
	}
	timeOfNeed, err := model.ParseMinutes(input.TimeOfNeed)
	if err != nil {
		return nil, err
	}

	ev := &model.NeedEvent{
		ID:              uuid.New().String(),
		Date:            date,
		TimeOfNeed:      timeOfNeed,
		Duration:        input.Duration,
		VolunteerCount:  input.VolunteerCount,
		AffectedPersons: input.AffectedPersons,
		Location:        input.Location,
		Notes:           input.Notes,
		CreatedBy:       input.CreatedBy,
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	err = store.WithTx(ctx, func(tx db.Tx) error {
		et, err := resolveEventType(ctx, tx, input.EventType)
		if err != nil {
			return err
		}
		ev.EventTypeID = et.ID

		if ev.CreatedBy != "" {
			coordinator, err := tx.GetVolunteer(ctx, ev.CreatedBy)
			if err != nil {
				return fmt.Errorf("failed to fetch coordinator: %w", err)
			}
			if !coordinator.HasPermission(model.PermissionCoordinate) {
				return fmt.Errorf("volunteer %s may not coordinate events", coordinator.UserName)
			}
		}

		return tx.InsertNeedEvent(ctx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create need event: %w", err)
	}

	logger.Info("Need event created",
		zap.String("event_id", ev.ID),
		zap.String("date", input.Date),
		zap.String("time_of_need", input.TimeOfNeed),
		zap.Int("volunteer_count", ev.VolunteerCount))
	return ev, nil
}

// ListOpenNeedEvents returns every event that is neither complete nor cancelled
func ListOpenNeedEvents(ctx context.Context, store db.Store) ([]model.NeedEvent, error) {
	var events []model.NeedEvent
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		events, err = tx.ListOpenNeedEvents(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list open events: %w", err)
	}
	return events, nil
}

// CancelEvent cancels a need and tells only the volunteers committed to it.
// Cancelling twice sends nothing the second time.
func CancelEvent(
	ctx context.Context,
	store db.Store,
	notifier Notifier,
	logger *zap.Logger,
	eventID string,
) (*CancelResult, error) {
	logger.Debug("Starting cancelEvent", zap.String("event_id", eventID))

	result := &CancelResult{Notified: []AlertSent{}, FailedAlerts: []notify.FailedAlert{}}
	var ev *model.NeedEvent
	var et *model.EventType
	var committed []model.Volunteer

	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		committed = nil

		ev, err = tx.LockNeedEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to fetch need event: %w", err)
		}
		if ev.Cancelled {
			result.AlreadyCancelled = true
			return nil
		}

		ev.Cancelled = true
		if err := tx.UpdateNeedEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to cancel event: %w", err)
		}

		committed, err = committedVolunteers(ctx, tx, eventID)
		if err != nil {
			return err
		}
		et, err = lookupEventType(ctx, tx, ev.EventTypeID, logger)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyCancelled {
		logger.Info("Need event already cancelled", zap.String("event_id", eventID))
		return result, nil
	}

	for i := range committed {
		vol := &committed[i]
		failed := notifier.SendCancellation(ctx, vol, ev, et)
		result.FailedAlerts = append(result.FailedAlerts, failed...)
		result.Notified = append(result.Notified, AlertSent{VolunteerID: vol.ID, VolunteerName: vol.Name()})
	}

	logger.Info("Need event cancelled", zap.String("event_id", eventID), zap.Int("notified", len(result.Notified)))
	return result, nil
}

// CompleteEvent marks an event as done. It stops being alerted or committed to.
func CompleteEvent(ctx context.Context, store db.Store, logger *zap.Logger, eventID string) (*model.NeedEvent, error) {
	var ev *model.NeedEvent
	err := store.WithTx(ctx, func(tx db.Tx) error {
		var err error
		ev, err = tx.LockNeedEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("failed to fetch need event: %w", err)
		}
		if ev.Complete {
			return nil
		}
		ev.Complete = true
		return tx.UpdateNeedEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Need event complete", zap.String("event_id", eventID))
	return ev, nil
}

// resolveEventType finds an event type by ID, then by case-insensitive name
func resolveEventType(ctx context.Context, tx db.Tx, ref string) (*model.EventType, error) {
	et, err := tx.GetEventType(ctx, ref)
	if err == nil {
		return et, nil
	}
	if !db.IsNotFound(err) {
		return nil, fmt.Errorf("failed to fetch event type: %w", err)
	}

	types, err := tx.ListEventTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list event types: %w", err)
	}
	for i := range types {
		if strings.EqualFold(types[i].Name, ref) {
			return &types[i], nil
		}
	}
	return nil, fmt.Errorf("event type %q: %w", ref, db.ErrNotFound)
}
