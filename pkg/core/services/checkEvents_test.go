package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/unter/pkg/core/model"
)

func TestCheckOneEvent_AlertsAvailableVolunteers(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	// Bob is only free on Mondays; the event is on a Wednesday
	f.addVolunteerWithSlot(t, "bob", model.AvailabilitySlot{ID: "slot-bob", Monday: true, StartTime: 0, EndTime: 1439})
	// Carol is free on Wednesdays but not for the whole window
	f.addVolunteerWithSlot(t, "carol", model.AvailabilitySlot{ID: "slot-carol", Wednesday: true, StartTime: 600, EndTime: 630})
	ev := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")

	result := f.check(t, ev.ID, true)

	assert.True(t, result.Attempted)
	assert.Equal(t, SkipNone, result.Skipped)
	assert.Equal(t, []string{alice.ID}, alertedIDs(result))
	assert.Empty(t, result.FailedAlerts)

	mail := f.mail.to("alice")
	require.Len(t, mail, 1)
	token := f.token(t, alice.ID, ev.ID)
	assert.Contains(t, mail[0].body, "https://unter.example.org/respond_by_uuid?uuid="+token+"&action=accept")
	assert.Contains(t, mail[0].body, "https://unter.example.org/respond_by_uuid?uuid="+token+"&action=refuse")
	assert.NotContains(t, mail[0].body, alice.ID)
	assert.NotContains(t, mail[0].body, ev.ID)

	assert.Equal(t, testNow.Unix(), f.event(t, ev.ID).LastAlertTime)
}

func TestCheckOneEvent_Cooldown(t *testing.T) {
	f := newFixture(t)
	f.addVolunteer(t, "alice")
	ev := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")

	tests := []struct {
		name          string
		lastAlert     time.Time
		honor         bool
		wantAttempted bool
	}{
		{"alerted just now", testNow, true, false},
		{"alerted an hour ago", testNow.Add(-time.Hour), true, false},
		{"alerted five hours ago", testNow.Add(-5 * time.Hour), true, true},
		{"never alerted", time.Unix(0, 0), true, true},
		{"forced despite recent alert", testNow, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := f.event(t, ev.ID)
			current.LastAlertTime = tt.lastAlert.Unix()
			f.updateEvent(t, current)
			before := len(f.mail.to("alice"))

			result := f.check(t, ev.ID, tt.honor)

			assert.Equal(t, tt.wantAttempted, result.Attempted)
			if tt.wantAttempted {
				assert.Len(t, f.mail.to("alice"), before+1)
				assert.Equal(t, testNow.Unix(), f.event(t, ev.ID).LastAlertTime)
			} else {
				assert.Len(t, f.mail.to("alice"), before)
				assert.Equal(t, tt.lastAlert.Unix(), f.event(t, ev.ID).LastAlertTime)
			}
		})
	}
}

func TestCheckOneEvent_ReusesToken(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	ev := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")

	f.check(t, ev.ID, false)
	first := f.token(t, alice.ID, ev.ID)
	f.check(t, ev.ID, false)

	assert.Equal(t, first, f.token(t, alice.ID, ev.ID))
	mail := f.mail.to("alice")
	require.Len(t, mail, 2)
	assert.Contains(t, mail[1].body, first)
}

func TestCheckOneEvent_ExcludesOverlappingCommitments(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	bob := f.addVolunteer(t, "bob")
	e1 := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")
	e2 := f.addEvent(t, "e2", "2024-03-13", "10:30", 60, 2, "")
	e3 := f.addEvent(t, "e3", "2024-03-13", "15:00", 60, 2, "")

	f.commit(t, alice.ID, e1.ID)

	assert.Equal(t, []string{bob.ID}, alertedIDs(f.check(t, e2.ID, true)))
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, alertedIDs(f.check(t, e3.ID, true)))
}

func TestCheckOneEvent_SkipsVolunteersWhoResponded(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	bob := f.addVolunteer(t, "bob")
	carol := f.addVolunteer(t, "carol")
	ev := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 3, "")

	f.commit(t, alice.ID, ev.ID)
	f.decommit(t, bob.ID, ev.ID)

	result := f.check(t, ev.ID, true)

	assert.Equal(t, []string{carol.ID}, alertedIDs(result))
	assert.Empty(t, f.mail.withSubject("bob", "volunteers needed"))
}

func TestCheckOneEvent_Skips(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	served := f.addEvent(t, "served", "2024-03-13", "10:00", 60, 1, "")
	cancelled := f.addEvent(t, "cancelled", "2024-03-13", "12:00", 60, 1, "")
	cancelled.Cancelled = true
	f.updateEvent(t, cancelled)
	complete := f.addEvent(t, "complete", "2024-03-13", "14:00", 60, 1, "")
	complete.Complete = true
	f.updateEvent(t, complete)

	f.commit(t, alice.ID, served.ID)
	sentBefore := f.mail.count()

	tests := []struct {
		eventID string
		want    CheckSkipReason
	}{
		{"served", SkipFullyServed},
		{"cancelled", SkipClosed},
		{"complete", SkipClosed},
		{"missing", SkipNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.eventID, func(t *testing.T) {
			result := f.check(t, tt.eventID, true)
			assert.True(t, result.Attempted)
			assert.Equal(t, tt.want, result.Skipped)
			assert.Empty(t, result.Alerted)
		})
	}
	assert.Equal(t, sentBefore, f.mail.count())
}

func TestCheckOneEvent_NoRecipientsStillResetsClock(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")

	result := f.check(t, ev.ID, true)

	assert.True(t, result.Attempted)
	assert.Empty(t, result.Alerted)
	assert.Equal(t, testNow.Unix(), f.event(t, ev.ID).LastAlertTime)
}

func TestCheckOneEvent_IgnoresVolunteersWithoutRespondPermission(t *testing.T) {
	f := newFixture(t)
	f.addVolunteer(t, "coord", model.PermissionCoordinate)
	alice := f.addVolunteer(t, "alice")
	ev := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")

	assert.Equal(t, []string{alice.ID}, alertedIDs(f.check(t, ev.ID, true)))
}

func TestCheckAllEvents(t *testing.T) {
	f := newFixture(t)
	f.addVolunteer(t, "alice")
	past := f.addEvent(t, "past", "2024-03-12", "10:00", 60, 2, "")
	today := f.addEvent(t, "today", "2024-03-13", "10:00", 60, 2, "")
	later := f.addEvent(t, "later", "2024-03-20", "10:00", 60, 2, "")
	recent := f.addEvent(t, "recent", "2024-03-14", "10:00", 60, 2, "")
	recent.LastAlertTime = testNow.Add(-time.Hour).Unix()
	f.updateEvent(t, recent)

	result, err := CheckAllEvents(f.ctx, f.store, f.notifier, f.clock, f.settings, f.logger)
	require.NoError(t, err)

	assert.Equal(t, []string{past.ID}, result.MarkedComplete)
	assert.True(t, f.event(t, past.ID).Complete)

	require.Len(t, result.Checks, 3)
	attempted := map[string]bool{}
	for _, check := range result.Checks {
		attempted[check.EventID] = check.Attempted
	}
	assert.Equal(t, map[string]bool{today.ID: true, recent.ID: false, later.ID: true}, attempted)

	assert.Len(t, f.mail.withSubject("alice", "volunteers needed"), 2)
}

func TestAlertableVolunteers(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	bob := f.addVolunteer(t, "bob")
	e1 := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")
	e2 := f.addEvent(t, "e2", "2024-03-13", "11:00", 60, 2, "")

	f.commit(t, alice.ID, e1.ID)

	vols, err := AlertableVolunteers(f.ctx, f.store, e2.ID)
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, bob.ID, vols[0].ID)
}
