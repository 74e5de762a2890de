package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/notify"
)

func TestHandleResponse(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	ev := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")
	f.check(t, ev.ID, false)
	token := f.token(t, alice.ID, ev.ID)

	t.Run("accept commits", func(t *testing.T) {
		outcome, err := HandleResponse(f.ctx, f.store, f.notifier, f.clock, f.logger, token, notify.ActionAccept)
		require.NoError(t, err)
		assert.True(t, outcome.Resolved)
		require.NotNil(t, outcome.Commit)
		assert.Equal(t, CommitCreated, outcome.Commit.Outcome)
		assert.Equal(t, model.ResponseCommitted, f.state(t, alice.ID, ev.ID))
	})

	t.Run("repeat accept is a no-op", func(t *testing.T) {
		outcome, err := HandleResponse(f.ctx, f.store, f.notifier, f.clock, f.logger, token, notify.ActionAccept)
		require.NoError(t, err)
		assert.Equal(t, CommitAlreadyExisted, outcome.Commit.Outcome)
	})

	t.Run("refuse declines", func(t *testing.T) {
		outcome, err := HandleResponse(f.ctx, f.store, f.notifier, f.clock, f.logger, token, notify.ActionRefuse)
		require.NoError(t, err)
		require.NotNil(t, outcome.Decommit)
		assert.True(t, outcome.Decommit.HadCommitment)
		assert.Equal(t, model.ResponseDeclined, f.state(t, alice.ID, ev.ID))
	})

	t.Run("token survives use", func(t *testing.T) {
		vol, resolved, err := ResolveToken(f.ctx, f.store, token)
		require.NoError(t, err)
		require.NotNil(t, vol)
		require.NotNil(t, resolved)
		assert.Equal(t, alice.ID, vol.ID)
		assert.Equal(t, ev.ID, resolved.ID)
	})

	t.Run("unknown action changes nothing", func(t *testing.T) {
		outcome, err := HandleResponse(f.ctx, f.store, f.notifier, f.clock, f.logger, token, "maybe")
		require.NoError(t, err)
		assert.True(t, outcome.Resolved)
		assert.Nil(t, outcome.Commit)
		assert.Nil(t, outcome.Decommit)
		assert.Equal(t, model.ResponseDeclined, f.state(t, alice.ID, ev.ID))
	})
}

func TestHandleResponse_UnknownToken(t *testing.T) {
	f := newFixture(t)
	f.addVolunteer(t, "alice")
	f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 2, "")

	outcome, err := HandleResponse(f.ctx, f.store, f.notifier, f.clock, f.logger, "not-a-token", notify.ActionAccept)

	require.NoError(t, err)
	assert.False(t, outcome.Resolved)
	assert.Nil(t, outcome.Commit)
	assert.Zero(t, f.mail.count())

	vol, ev, err := ResolveToken(f.ctx, f.store, "not-a-token")
	require.NoError(t, err)
	assert.Nil(t, vol)
	assert.Nil(t, ev)
}

func TestRespondByUserAction(t *testing.T) {
	f := newFixture(t)
	alice := f.addVolunteer(t, "alice")
	ev := f.addEvent(t, "e1", "2024-03-13", "10:00", 60, 1, "")

	result, err := RespondByUserAction(f.ctx, f.store, f.notifier, f.clock, f.logger, alice.ID, ev.ID)

	require.NoError(t, err)
	assert.Equal(t, CommitCreated, result.Outcome)
	assert.Equal(t, ev.ID, result.Event.ID)
}
