package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/db"
	"github.com/jakechorley/unter/pkg/notify"
)

// Wednesday 13 March 2024, 08:00 UTC
var testNow = time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

// mailbox records every email the dispatcher sends
type mailbox struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (m *mailbox) SendEmail(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (m *mailbox) to(userName string) []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []sentEmail
	for _, e := range m.sent {
		if e.to == userName+"@example.org" {
			result = append(result, e)
		}
	}
	return result
}

func (m *mailbox) withSubject(userName, fragment string) []sentEmail {
	var result []sentEmail
	for _, e := range m.to(userName) {
		if strings.Contains(e.subject, fragment) {
			result = append(result, e)
		}
	}
	return result
}

func (m *mailbox) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	ctx       context.Context
	store     *db.MemoryDB
	mail      *mailbox
	notifier  *notify.Dispatcher
	clock     *fixedClock
	logger    *zap.Logger
	eventType model.EventType
	settings  AlertSettings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:    context.Background(),
		store:  db.NewMemoryDB(),
		mail:   &mailbox{},
		clock:  &fixedClock{now: testNow},
		logger: zap.NewNop(),
		eventType: model.EventType{
			ID:          "et-airport",
			Name:        "airport",
			Description: "Airport pickup",
		},
		settings: AlertSettings{Cooldown: 4 * time.Hour, Location: time.UTC},
	}
	f.notifier = notify.NewDispatcher(nil, f.mail, notify.Options{
		SiteURL: "https://unter.example.org",
		OrgName: "Unter",
	}, f.logger)

	err := f.store.WithTx(f.ctx, func(tx db.Tx) error {
		return tx.InsertEventType(f.ctx, &f.eventType)
	})
	require.NoError(t, err)
	return f
}

// addVolunteer registers a volunteer available all day every day
func (f *fixture) addVolunteer(t *testing.T, userName string, perms ...model.Permission) model.Volunteer {
	t.Helper()
	return f.addVolunteerWithSlot(t, userName, model.AvailabilitySlot{
		ID:     "slot-" + userName,
		Sunday: true, Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true, Saturday: true,
		StartTime: 0,
		EndTime:   model.MinutesPerDay - 1,
	}, perms...)
}

func (f *fixture) addVolunteerWithSlot(t *testing.T, userName string, slot model.AvailabilitySlot, perms ...model.Permission) model.Volunteer {
	t.Helper()
	if len(perms) == 0 {
		perms = []model.Permission{model.PermissionRespondToNeed}
	}
	vol := model.Volunteer{
		ID:           "vol-" + userName,
		UserName:     userName,
		Email:        userName + "@example.org",
		Phone:        "555-0100",
		Permissions:  perms,
		Availability: []model.AvailabilitySlot{slot},
	}
	err := f.store.WithTx(f.ctx, func(tx db.Tx) error {
		return tx.InsertVolunteer(f.ctx, &vol)
	})
	require.NoError(t, err)
	return vol
}

// addEvent inserts an open event; date is YYYY-MM-DD and start is HH:MM
func (f *fixture) addEvent(t *testing.T, id, date, start string, duration, count int, createdBy string) model.NeedEvent {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	require.NoError(t, err)
	timeOfNeed, err := model.ParseMinutes(start)
	require.NoError(t, err)

	ev := model.NeedEvent{
		ID:             id,
		EventTypeID:    f.eventType.ID,
		Date:           d,
		TimeOfNeed:     timeOfNeed,
		Duration:       duration,
		VolunteerCount: count,
		Location:       "Terminal 2",
		CreatedBy:      createdBy,
	}
	err = f.store.WithTx(f.ctx, func(tx db.Tx) error {
		return tx.InsertNeedEvent(f.ctx, &ev)
	})
	require.NoError(t, err)
	return ev
}

func (f *fixture) event(t *testing.T, id string) model.NeedEvent {
	t.Helper()
	var ev *model.NeedEvent
	err := f.store.WithTx(f.ctx, func(tx db.Tx) error {
		var err error
		ev, err = tx.GetNeedEvent(f.ctx, id)
		return err
	})
	require.NoError(t, err)
	return *ev
}

func (f *fixture) updateEvent(t *testing.T, ev model.NeedEvent) {
	t.Helper()
	err := f.store.WithTx(f.ctx, func(tx db.Tx) error {
		return tx.UpdateNeedEvent(f.ctx, &ev)
	})
	require.NoError(t, err)
}

// state returns the pair's ledger state, ResponseNone when there is no row
func (f *fixture) state(t *testing.T, volunteerID, eventID string) model.ResponseState {
	t.Helper()
	var state model.ResponseState
	err := f.store.WithTx(f.ctx, func(tx db.Tx) error {
		resp, err := getResponse(f.ctx, tx, volunteerID, eventID)
		if err != nil || resp == nil {
			return err
		}
		state = resp.State
		return nil
	})
	require.NoError(t, err)
	return state
}

func (f *fixture) token(t *testing.T, volunteerID, eventID string) string {
	t.Helper()
	var token string
	err := f.store.WithTx(f.ctx, func(tx db.Tx) error {
		tok, err := tx.GetResponseToken(f.ctx, volunteerID, eventID)
		if err != nil {
			return err
		}
		token = tok.Token
		return nil
	})
	require.NoError(t, err)
	return token
}

func (f *fixture) commit(t *testing.T, volunteerID, eventID string) *CommitResult {
	t.Helper()
	result, err := Commit(f.ctx, f.store, f.notifier, f.clock, f.logger, volunteerID, eventID)
	require.NoError(t, err)
	return result
}

func (f *fixture) decommit(t *testing.T, volunteerID, eventID string) *DecommitResult {
	t.Helper()
	result, err := Decommit(f.ctx, f.store, f.notifier, f.clock, f.logger, volunteerID, eventID)
	require.NoError(t, err)
	return result
}

func (f *fixture) check(t *testing.T, eventID string, honorLastAlertTime bool) *CheckResult {
	t.Helper()
	result, err := CheckOneEvent(f.ctx, f.store, f.notifier, f.clock, f.settings, f.logger, eventID, honorLastAlertTime)
	require.NoError(t, err)
	return result
}

func alertedIDs(result *CheckResult) []string {
	ids := []string{}
	for _, a := range result.Alerted {
		ids = append(ids, a.VolunteerID)
	}
	return ids
}
