package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/unter/pkg/core/model"
)

// Channel names a delivery channel
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// SMSSender delivers a text message to an E.164 phone number
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender delivers a plain-text email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// DeliveryError reports a failed send on one channel to one volunteer
type DeliveryError struct {
	VolunteerID string
	Channel     Channel
	Destination string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to volunteer %s failed: %v", e.Channel, e.VolunteerID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// FailedAlert represents a notification that could not be delivered
type FailedAlert struct {
	VolunteerID   string
	VolunteerName string
	Channel       Channel
	Destination   string
	Error         string
}

// Options holds the text and formatting settings used to render messages
type Options struct {
	SiteURL         string
	OrgName         string
	DefaultAreaCode string
}

// Dispatcher renders notifications and delivers them over the enabled channels.
// A nil sender disables its channel.
type Dispatcher struct {
	sms    SMSSender
	email  EmailSender
	opts   Options
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher; pass nil for a disabled channel
func NewDispatcher(sms SMSSender, email EmailSender, opts Options, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sms:    sms,
		email:  email,
		opts:   opts,
		logger: logger,
	}
}

// SMSEnabled reports whether the SMS channel is configured
func (d *Dispatcher) SMSEnabled() bool {
	return d.sms != nil
}

// EmailEnabled reports whether the email channel is configured
func (d *Dispatcher) EmailEnabled() bool {
	return d.email != nil
}

// SendEventAlert asks a volunteer to commit to an event using the pair's response token
func (d *Dispatcher) SendEventAlert(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType, token string) []FailedAlert {
	return d.deliver(ctx, vol, alertMessage(d.opts.OrgName, d.opts.SiteURL, token, ev, et))
}

// SendConfirmation thanks a volunteer for a new commitment
func (d *Dispatcher) SendConfirmation(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []FailedAlert {
	return d.deliver(ctx, vol, confirmationMessage(d.opts.OrgName, ev, et))
}

// SendNoLongerNeeded tells a volunteer the event filled before their commit arrived
func (d *Dispatcher) SendNoLongerNeeded(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []FailedAlert {
	return d.deliver(ctx, vol, noLongerNeededMessage(d.opts.OrgName, ev, et))
}

// SendCoordinatorDecommit tells the coordinator that a committed volunteer dropped out
func (d *Dispatcher) SendCoordinatorDecommit(ctx context.Context, coordinator, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []FailedAlert {
	return d.deliver(ctx, coordinator, coordinatorDecommitMessage(d.opts.OrgName, vol, ev, et))
}

// SendCancellation tells a committed volunteer that the event was cancelled
func (d *Dispatcher) SendCancellation(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []FailedAlert {
	return d.deliver(ctx, vol, cancellationMessage(d.opts.OrgName, ev, et))
}

// SendReminder reminds a committed volunteer shortly before the event
func (d *Dispatcher) SendReminder(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []FailedAlert {
	return d.deliver(ctx, vol, reminderMessage(d.opts.OrgName, ev, et))
}

// deliver sends msg by SMS (when enabled and the volunteer opted in) and by
// email (when enabled and an address is on file). Failures are returned, not raised.
func (d *Dispatcher) deliver(ctx context.Context, vol *model.Volunteer, msg message) []FailedAlert {
	failed := []FailedAlert{}

	if d.sms != nil && vol.TextAlertsOK && vol.Phone != "" {
		if de := d.sendSMS(ctx, vol, msg); de != nil {
			failed = append(failed, d.failure(vol, de))
		}
	}

	if d.email != nil && vol.Email != "" {
		if de := d.sendEmail(ctx, vol, msg); de != nil {
			failed = append(failed, d.failure(vol, de))
		}
	}

	return failed
}

func (d *Dispatcher) sendSMS(ctx context.Context, vol *model.Volunteer, msg message) *DeliveryError {
	to, err := NormalizePhone(vol.Phone, d.opts.DefaultAreaCode)
	if err != nil {
		return &DeliveryError{VolunteerID: vol.ID, Channel: ChannelSMS, Destination: vol.Phone, Err: err}
	}

	d.logger.Debug("Sending SMS", zap.String("volunteer_id", vol.ID), zap.String("to", to))
	if err := d.sms.SendSMS(ctx, to, msg.Text); err != nil {
		return &DeliveryError{VolunteerID: vol.ID, Channel: ChannelSMS, Destination: to, Err: err}
	}
	return nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, vol *model.Volunteer, msg message) *DeliveryError {
	d.logger.Debug("Sending email", zap.String("volunteer_id", vol.ID), zap.String("to", vol.Email))
	if err := d.email.SendEmail(ctx, vol.Email, msg.Subject, msg.Text); err != nil {
		return &DeliveryError{VolunteerID: vol.ID, Channel: ChannelEmail, Destination: vol.Email, Err: err}
	}
	return nil
}

func (d *Dispatcher) failure(vol *model.Volunteer, de *DeliveryError) FailedAlert {
	d.logger.Warn("Failed to deliver notification",
		zap.String("volunteer_id", vol.ID),
		zap.String("channel", string(de.Channel)),
		zap.Error(de.Err))

	return FailedAlert{
		VolunteerID:   vol.ID,
		VolunteerName: vol.Name(),
		Channel:       de.Channel,
		Destination:   de.Destination,
		Error:         de.Err.Error(),
	}
}
