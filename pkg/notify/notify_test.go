package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/unter/internal/config"
	"github.com/jakechorley/unter/pkg/core/model"
)

type sentSMS struct{ to, body string }

type sentEmail struct{ to, subject, body string }

type recorder struct {
	sms    []sentSMS
	emails []sentEmail
	err    error
}

func (r *recorder) SendSMS(ctx context.Context, to, body string) error {
	r.sms = append(r.sms, sentSMS{to, body})
	return r.err
}

func (r *recorder) SendEmail(ctx context.Context, to, subject, body string) error {
	r.emails = append(r.emails, sentEmail{to, subject, body})
	return r.err
}

var testOpts = Options{SiteURL: "https://unter.example.org/", OrgName: "MVCA", DefaultAreaCode: "915"}

func testEvent() (*model.NeedEvent, *model.EventType) {
	ev := &model.NeedEvent{
		ID:             "event-123",
		Date:           time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
		TimeOfNeed:     570,
		Duration:       60,
		VolunteerCount: 2,
		Location:       "Annunciation House",
	}
	et := &model.EventType{Name: "airport", Description: "take people to the airport"}
	return ev, et
}

func TestResponseURL(t *testing.T) {
	assert.Equal(t,
		"https://unter.example.org/respond_by_uuid?uuid=abc-123&action=accept",
		ResponseURL("https://unter.example.org/", "abc-123", ActionAccept))
	assert.Equal(t,
		"https://unter.example.org/respond_by_uuid?uuid=abc-123&action=refuse",
		ResponseURL("https://unter.example.org", "abc-123", ActionRefuse))
}

func TestSendEventAlert_TextCarriesOnlyToken(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, rec, testOpts, zap.NewNop())
	ev, et := testEvent()
	vol := &model.Volunteer{ID: "vol-456", Phone: "915-555-0123", TextAlertsOK: true, Email: "v@example.org"}

	failed := d.SendEventAlert(context.Background(), vol, ev, et, "tok-789")

	assert.Empty(t, failed)
	require.Len(t, rec.sms, 1)
	require.Len(t, rec.emails, 1)

	for _, text := range []string{rec.sms[0].body, rec.emails[0].body} {
		assert.Contains(t, text, "This is MVCA.")
		assert.Contains(t, text, "Purpose: take people to the airport")
		assert.Contains(t, text, "9:30")
		assert.Contains(t, text, "Location: Annunciation House")
		assert.Contains(t, text, "Click link to commit: https://unter.example.org/respond_by_uuid?uuid=tok-789&action=accept")
		assert.Contains(t, text, "uuid=tok-789&action=refuse")
		assert.NotContains(t, text, "user_id=")
		assert.NotContains(t, text, "neid=")
		assert.NotContains(t, text, "vol-456")
		assert.NotContains(t, text, "event-123")
	}
	assert.Equal(t, "+19155550123", rec.sms[0].to)
}

func TestDeliver_ChannelRules(t *testing.T) {
	ev, et := testEvent()

	tests := []struct {
		name       string
		sms, email bool
		vol        model.Volunteer
		wantSMS    int
		wantEmails int
	}{
		{"both channels, opted in", true, true, model.Volunteer{Phone: "5550123", TextAlertsOK: true, Email: "v@example.org"}, 1, 1},
		{"sms not opted in", true, true, model.Volunteer{Phone: "5550123", Email: "v@example.org"}, 0, 1},
		{"sms channel disabled", false, true, model.Volunteer{Phone: "5550123", TextAlertsOK: true, Email: "v@example.org"}, 0, 1},
		{"email channel disabled", true, false, model.Volunteer{Phone: "5550123", TextAlertsOK: true, Email: "v@example.org"}, 1, 0},
		{"no email on file", true, true, model.Volunteer{Phone: "5550123", TextAlertsOK: true}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			var sms SMSSender
			var email EmailSender
			if tt.sms {
				sms = rec
			}
			if tt.email {
				email = rec
			}
			d := NewDispatcher(sms, email, testOpts, zap.NewNop())

			d.SendConfirmation(context.Background(), &tt.vol, ev, et)

			assert.Len(t, rec.sms, tt.wantSMS)
			assert.Len(t, rec.emails, tt.wantEmails)
		})
	}
}

func TestDeliver_CollectsFailures(t *testing.T) {
	rec := &recorder{err: errors.New("provider down")}
	d := NewDispatcher(rec, rec, testOpts, zap.NewNop())
	ev, et := testEvent()
	vol := &model.Volunteer{ID: "v1", UserName: "alice", Phone: "5550123", TextAlertsOK: true, Email: "v@example.org"}

	failed := d.SendReminder(context.Background(), vol, ev, et)

	require.Len(t, failed, 2)
	assert.Equal(t, ChannelSMS, failed[0].Channel)
	assert.Equal(t, ChannelEmail, failed[1].Channel)
	assert.Equal(t, "alice", failed[0].VolunteerName)
	assert.Equal(t, "provider down", failed[1].Error)
}

func TestDeliver_BadPhoneIsAFailureNotAPanic(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, nil, Options{OrgName: "MVCA"}, zap.NewNop())
	ev, et := testEvent()
	vol := &model.Volunteer{ID: "v1", Phone: "12", TextAlertsOK: true}

	failed := d.SendCancellation(context.Background(), vol, ev, et)

	require.Len(t, failed, 1)
	assert.Empty(t, rec.sms)
}

func TestMessages(t *testing.T) {
	ev, et := testEvent()
	vol := &model.Volunteer{UserName: "alice", DisplayName: "Alice A", Phone: "915-555-0123"}

	assert.Contains(t, confirmationMessage("MVCA", ev, et).Text, "Please go to Annunciation House")
	assert.Contains(t, noLongerNeededMessage("MVCA", ev, et).Text, "Enough volunteers have responded")
	assert.Contains(t, cancellationMessage("MVCA", ev, et).Text, "has been cancelled")

	decommit := coordinatorDecommitMessage("MVCA", vol, ev, et).Text
	assert.Contains(t, decommit, "Alice A cannot serve")
	assert.Contains(t, decommit, "915-555-0123")
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"5550123", "+19155550123", false},
		{"555-0123", "+19155550123", false},
		{"(915) 555-0123", "+19155550123", false},
		{"19155550123", "+19155550123", false},
		{"+1 915 555 0123", "+19155550123", false},
		{"+44 20 7946 0958", "+442079460958", false},
		{"12", "", true},
		{"29155550123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, "915")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone_NoDefaultAreaCode(t *testing.T) {
	_, err := NormalizePhone("5550123", "")
	assert.Error(t, err)
}

func TestNewSenders(t *testing.T) {
	cfg := &config.Config{
		SMS:   config.SMSConfig{Provider: "none"},
		Email: config.EmailConfig{Provider: "log"},
	}

	sms, email, err := NewSenders(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, sms)
	assert.IsType(t, &LogSender{}, email)

	cfg.SMS.Provider = "carrier-pigeon"
	_, _, err = NewSenders(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
