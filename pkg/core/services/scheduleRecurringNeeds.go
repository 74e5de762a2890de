package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/internal/config"
	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
)

// ScheduleRecurringNeedsResult lists the events created by a scheduling run
type ScheduleRecurringNeedsResult struct {
	Created []model.NeedEvent
	// Existing counts occurrences that already had an event
	Existing int
}

// ScheduleRecurringNeeds creates need events for every occurrence of the
// configured recurring needs between today and the horizon. An occurrence that
// already has an event is left alone, so running it repeatedly is safe.
func ScheduleRecurringNeeds(
	ctx context.Context,
	store db.Store,
	clock Clock,
	cfg *config.Config,
	logger *zap.Logger,
) (*ScheduleRecurringNeedsResult, error) {
	logger.Debug("Starting scheduleRecurringNeeds",
		zap.Int("recurring_needs", len(cfg.RecurringNeeds)),
		zap.Int("horizon_days", cfg.RecurringHorizonDays))

	result := &ScheduleRecurringNeedsResult{Created: []model.NeedEvent{}}
	if len(cfg.RecurringNeeds) == 0 {
		return result, nil
	}

	loc := cfg.Location()
	today := startOfDay(clock.Now(), loc)
	horizon := today.AddDate(0, 0, cfg.RecurringHorizonDays)

	// Step 1: Expand each rule into concrete dates
	type occurrence struct {
		need config.RecurringNeed
		date time.Time
	}
	var occurrences []occurrence
	for i, need := range cfg.RecurringNeeds {
		rule, err := rrule.StrToRRule(need.RRule)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rrule for recurring need %d: %w", i, err)
		}
		rule.DTStart(today)
		for _, date := range rule.Between(today, horizon, true) {
			occurrences = append(occurrences, occurrence{need: need, date: startOfDay(date, loc)})
		}
		logger.Debug("Expanded recurring need", zap.String("id", need.ID), zap.String("rrule", need.RRule))
	}

	// Step 2: Insert events for occurrences that do not have one yet
	err := store.WithTx(ctx, func(tx db.Tx) error {
		result.Created = []model.NeedEvent{}
		result.Existing = 0

		for _, occ := range occurrences {
			exists, err := tx.RecurrenceExists(ctx, occ.need.ID, occ.date)
			if err != nil {
				return fmt.Errorf("failed to check recurrence: %w", err)
			}
			if exists {
				result.Existing++
				continue
			}

			et, err := resolveEventType(ctx, tx, occ.need.EventType)
			if err != nil {
				return fmt.Errorf("recurring need %s: %w", occ.need.ID, err)
			}
			timeOfNeed, err := model.ParseMinutes(occ.need.TimeOfNeed)
			if err != nil {
				return fmt.Errorf("recurring need %s: %w", occ.need.ID, err)
			}

			ev := model.NeedEvent{
				ID:              uuid.New().String(),
				EventTypeID:     et.ID,
				Date:            occ.date,
				TimeOfNeed:      timeOfNeed,
				Duration:        occ.need.Duration,
				VolunteerCount:  occ.need.VolunteerCount,
				AffectedPersons: occ.need.AffectedPersons,
				Location:        occ.need.Location,
				Notes:           occ.need.Notes,
				RecurrenceID:    occ.need.ID,
			}
			if err := ev.Validate(); err != nil {
				return fmt.Errorf("recurring need %s: %w", occ.need.ID, err)
			}
			if err := tx.InsertNeedEvent(ctx, &ev); err != nil {
				return fmt.Errorf("failed to insert recurring event: %w", err)
			}
			result.Created = append(result.Created, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Scheduled recurring needs",
		zap.Int("created", len(result.Created)),
		zap.Int("existing", result.Existing))
	return result, nil
}
