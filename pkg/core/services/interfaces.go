package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/unter/pkg/core/model"
	"github.com/jakechorley/unter/pkg/notify"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Notifier defines the notifications the services send.
// notify.Dispatcher implements it.
type Notifier interface {
	SendEventAlert(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType, token string) []notify.FailedAlert
	SendConfirmation(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []notify.FailedAlert
	SendNoLongerNeeded(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []notify.FailedAlert
	SendCoordinatorDecommit(ctx context.Context, coordinator, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []notify.FailedAlert
	SendCancellation(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []notify.FailedAlert
	SendReminder(ctx context.Context, vol *model.Volunteer, ev *model.NeedEvent, et *model.EventType) []notify.FailedAlert
}

var _ Notifier = (*notify.Dispatcher)(nil)

// MissingEntityError is returned when an operation needs a volunteer and an
// event and at least one of them cannot be resolved
type MissingEntityError struct {
	VolunteerID string
	EventID     string
	Err         error
}

func (e *MissingEntityError) Error() string {
	return fmt.Sprintf("missing volunteer %q or event %q: %v", e.VolunteerID, e.EventID, e.Err)
}

func (e *MissingEntityError) Unwrap() error {
	return e.Err
}
