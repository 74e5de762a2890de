package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/unter/internal/config"
)

func recurringConfig() *config.Config {
	return &config.Config{
		TimeZone:             "UTC",
		RecurringHorizonDays: 10,
		RecurringNeeds: []config.RecurringNeed{
			{
				ID:             "wednesday-airport",
				RRule:          "FREQ=WEEKLY;BYDAY=WE",
				EventType:      "airport",
				TimeOfNeed:     "10:00",
				Duration:       60,
				VolunteerCount: 2,
				Location:       "Terminal 2",
			},
		},
	}
}

func TestScheduleRecurringNeeds(t *testing.T) {
	f := newFixture(t)
	cfg := recurringConfig()

	result, err := ScheduleRecurringNeeds(f.ctx, f.store, f.clock, cfg, f.logger)
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	assert.Zero(t, result.Existing)
	dates := []string{}
	for _, ev := range result.Created {
		dates = append(dates, ev.Date.Format("2006-01-02"))
		assert.Equal(t, "wednesday-airport", ev.RecurrenceID)
		assert.Equal(t, f.eventType.ID, ev.EventTypeID)
		assert.Equal(t, 600, ev.TimeOfNeed)
		assert.Equal(t, time.Wednesday, ev.Date.Weekday())
	}
	assert.Equal(t, []string{"2024-03-13", "2024-03-20"}, dates)

	t.Run("running again creates nothing", func(t *testing.T) {
		again, err := ScheduleRecurringNeeds(f.ctx, f.store, f.clock, cfg, f.logger)
		require.NoError(t, err)
		assert.Empty(t, again.Created)
		assert.Equal(t, 2, again.Existing)

		open, err := ListOpenNeedEvents(f.ctx, f.store)
		require.NoError(t, err)
		assert.Len(t, open, 2)
	})

	t.Run("horizon moves forward with the clock", func(t *testing.T) {
		f.clock.now = testNow.AddDate(0, 0, 7)
		later, err := ScheduleRecurringNeeds(f.ctx, f.store, f.clock, cfg, f.logger)
		require.NoError(t, err)
		require.Len(t, later.Created, 1)
		assert.Equal(t, "2024-03-27", later.Created[0].Date.Format("2006-01-02"))
		assert.Equal(t, 1, later.Existing)
	})
}

func TestScheduleRecurringNeeds_UnknownEventType(t *testing.T) {
	f := newFixture(t)
	cfg := recurringConfig()
	cfg.RecurringNeeds[0].EventType = "ferry"

	_, err := ScheduleRecurringNeeds(f.ctx, f.store, f.clock, cfg, f.logger)
	assert.Error(t, err)

	open, err := ListOpenNeedEvents(f.ctx, f.store)
	require.NoError(t, err)
	assert.Empty(t, open, "failed run leaves no partial events")
}

func TestScheduleRecurringNeeds_NothingConfigured(t *testing.T) {
	f := newFixture(t)

	result, err := ScheduleRecurringNeeds(f.ctx, f.store, f.clock, &config.Config{TimeZone: "UTC"}, f.logger)
	require.NoError(t, err)
	assert.Empty(t, result.Created)
}
