package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendCommitmentReminders(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	bob := f.addVolunteer(t, "bob")
	soon := f.addEvent(t, "soon", "2024-03-13", "08:45", 60, 2, "")
	later := f.addEvent(t, "later", "2024-03-13", "13:00", 60, 2, "")
	started := f.addEvent(t, "started", "2024-03-13", "07:30", 60, 2, "")

	f.commit(t, alice.ID, soon.ID)
	f.commit(t, alice.ID, later.ID)
	f.commit(t, bob.ID, started.ID)
	f.decommit(t, bob.ID, soon.ID)

	sent, failed, err := SendCommitmentReminders(f.ctx, f.store, f.notifier, f.clock, time.UTC, time.Hour, f.logger)
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, sent, 1)
	assert.Equal(t, ReminderSent{VolunteerID: alice.ID, VolunteerName: "alice", EventID: soon.ID}, sent[0])

	reminders := f.mail.withSubject("alice", "reminder")
	require.Len(t, reminders, 1)
	assert.Contains(t, reminders[0].body, "today at 8:45")

	t.Run("each commitment is reminded once", func(t *testing.T) {
		sent, _, err := SendCommitmentReminders(f.ctx, f.store, f.notifier, f.clock, time.UTC, time.Hour, f.logger)
		require.NoError(t, err)
		assert.Empty(t, sent)
		assert.Len(t, f.mail.withSubject("alice", "reminder"), 1)
	})

	t.Run("later event is reminded once it is within the lead", func(t *testing.T) {
		f.clock.now = testNow.Add(4*time.Hour + 30*time.Minute)
		sent, _, err := SendCommitmentReminders(f.ctx, f.store, f.notifier, f.clock, time.UTC, time.Hour, f.logger)
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, later.ID, sent[0].EventID)
	})
}
