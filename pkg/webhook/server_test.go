package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/core/services"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type outbox struct {
	mu    sync.Mutex
	count int
}

func (o *outbox) SendEmail(ctx context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.count++
	return nil
}

type testServer struct {
	store   *db.MemoryDB
	handler http.Handler
	mail    *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemoryDB()

	err := store.WithTx(ctx, func(tx db.Tx) error {
		if err := tx.InsertEventType(ctx, &model.EventType{ID: "et1", Name: "airport"}); err != nil {
			return err
		}
		if err := tx.InsertVolunteer(ctx, &model.Volunteer{
			ID:          "vol-alice",
			UserName:    "alice",
			Email:       "alice@example.org",
			Permissions: []model.Permission{model.PermissionRespondToNeed},
			Availability: []model.AvailabilitySlot{{
				ID: "slot1", Wednesday: true, StartTime: 0, EndTime: model.MinutesPerDay - 1,
			}},
		}); err != nil {
			return err
		}
		return tx.InsertNeedEvent(ctx, &model.NeedEvent{
			ID:             "event-1",
			EventTypeID:    "et1",
			Date:           time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
			TimeOfNeed:     600,
			Duration:       60,
			VolunteerCount: 1,
			Location:       "Terminal 2",
		})
	})
	require.NoError(t, err)

	mail := &outbox{}
	logger := zap.NewNop()
	dispatcher := notify.NewDispatcher(nil, mail, notify.Options{SiteURL: "https://unter.example.org", OrgName: "Unter"}, logger)
	clock := fixedClock{now: time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)}
	settings := services.AlertSettings{Cooldown: 4 * time.Hour, Location: time.UTC}

	srv := NewServer(store, dispatcher, clock, settings, logger)
	return &testServer{store: store, handler: srv.Handler(), mail: mail}
}

func (ts *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) token(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	var token string
	err := ts.store.WithTx(ctx, func(tx db.Tx) error {
		tok, err := tx.GetResponseToken(ctx, "vol-alice", "event-1")
		if err != nil {
			return err
		}
		token = tok.Token
		return nil
	})
	require.NoError(t, err)
	return token
}

func (ts *testServer) state(t *testing.T) model.ResponseState {
	t.Helper()
	ctx := context.Background()
	var state model.ResponseState
	err := ts.store.WithTx(ctx, func(tx db.Tx) error {
		resp, err := tx.GetResponse(ctx, "vol-alice", "event-1")
		if db.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		state = resp.State
		return nil
	})
	require.NoError(t, err)
	return state
}

func TestRespondByToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/events/event-1/check?force=true")
	require.Equal(t, http.StatusOK, rec.Code)
	token := ts.token(t)

	tests := []struct {
		name      string
		query     string
		wantState model.ResponseState
	}{
		{"unknown token", "uuid=nope&action=accept", model.ResponseNone},
		{"missing parameters", "", model.ResponseNone},
		{"unknown action", "uuid=" + token + "&action=maybe", model.ResponseNone},
		{"accept", "uuid=" + token + "&action=accept", model.ResponseCommitted},
		{"accept again", "uuid=" + token + "&action=accept", model.ResponseCommitted},
		{"refuse", "uuid=" + token + "&action=refuse", model.ResponseDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/respond_by_uuid?"+tt.query)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, services.GenericResponseMessage, rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "vol-alice")
			assert.NotContains(t, rec.Body.String(), "event-1")
			assert.Equal(t, tt.wantState, ts.state(t))
		})
	}
}

func TestRespondAndDecommit(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/volunteers/vol-alice/events/event-1/respond")
	require.Equal(t, http.StatusOK, rec.Code)
	var commit commitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &commit))
	assert.Equal(t, services.CommitCreated, commit.Outcome)

	rec = ts.do(t, http.MethodPost, "/api/volunteers/vol-alice/events/event-1/decommit")
	require.Equal(t, http.StatusOK, rec.Code)
	var decommit decommitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decommit))
	assert.True(t, decommit.HadCommitment)
	assert.False(t, decommit.CoordinatorNotified)

	rec = ts.do(t, http.MethodPost, "/api/volunteers/vol-alice/events/missing/respond")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/volunteers/vol-alice/events/event-1/respond")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAvailableEvents(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/volunteers/vol-alice/available_events")
	require.Equal(t, http.StatusOK, rec.Code)

	var events []eventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, eventResponse{
		ID:             "event-1",
		EventTypeID:    "et1",
		Date:           "2024-03-13",
		TimeOfNeed:     "10:00",
		Duration:       60,
		VolunteerCount: 1,
		Location:       "Terminal 2",
	}, events[0])

	rec = ts.do(t, http.MethodGet, "/api/volunteers/missing/available_events")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckEvent_HonorsCooldownUnlessForced(t *testing.T) {
	ts := newTestServer(t)

	var first, second, forced checkResponse
	rec := ts.do(t, http.MethodPost, "/api/events/event-1/check")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	rec = ts.do(t, http.MethodPost, "/api/events/event-1/check")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	rec = ts.do(t, http.MethodPost, "/api/events/event-1/check?force=true")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forced))

	assert.True(t, first.Attempted)
	assert.Equal(t, 1, first.Alerted)
	assert.False(t, second.Attempted)
	assert.True(t, forced.Attempted)
	assert.Equal(t, 2, ts.mail.count)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
}
