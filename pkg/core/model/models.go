package model

import (
	"fmt"
	"slices"
	"time"
)

// Permission names a capability granted to a volunteer
type Permission string

const (
	PermissionRespondToNeed Permission = "respond_to_need"
	PermissionCoordinate    Permission = "coordinate"
	PermissionManage        Permission = "manage"
)

func (p Permission) IsValid() bool {
	return p == PermissionRespondToNeed || p == PermissionCoordinate || p == PermissionManage
}

// MinutesPerDay is the number of minutes in a calendar day; times of day are
// stored as minutes past midnight in [0, MinutesPerDay)
const MinutesPerDay = 24 * 60

// Volunteer represents a registered volunteer (coordinators are volunteers too)
type Volunteer struct {
	ID           string
	UserName     string
	DisplayName  string
	Email        string
	Phone        string
	TextAlertsOK bool
	Description  string
	Zipcode      string
	Permissions  []Permission
	Availability []AvailabilitySlot
}

// HasPermission reports whether the volunteer holds the given capability
func (v *Volunteer) HasPermission(p Permission) bool {
	return slices.Contains(v.Permissions, p)
}

// Name returns the display name, falling back to the user name
func (v *Volunteer) Name() string {
	if v.DisplayName != "" {
		return v.DisplayName
	}
	return v.UserName
}

// AvailabilitySlot is a weekly window during which a volunteer can serve.
// StartTime and EndTime are minutes past midnight and the window is closed: [StartTime, EndTime].
type AvailabilitySlot struct {
	ID          string
	VolunteerID string
	Sunday      bool
	Monday      bool
	Tuesday     bool
	Wednesday   bool
	Thursday    bool
	Friday      bool
	Saturday    bool
	StartTime   int
	EndTime     int
}

// OnWeekday reports whether the slot's day-of-week flag for wd is set
func (s *AvailabilitySlot) OnWeekday(wd time.Weekday) bool {
	switch wd {
	case time.Sunday:
		return s.Sunday
	case time.Monday:
		return s.Monday
	case time.Tuesday:
		return s.Tuesday
	case time.Wednesday:
		return s.Wednesday
	case time.Thursday:
		return s.Thursday
	case time.Friday:
		return s.Friday
	case time.Saturday:
		return s.Saturday
	}
	return false
}

// Contains reports whether the closed window [start, end] lies entirely inside the slot
func (s *AvailabilitySlot) Contains(start, end int) bool {
	return s.StartTime <= start && end <= s.EndTime
}

// Validate requires 0 <= start <= end <= 1439 and at least one day set
func (s *AvailabilitySlot) Validate() error {
	if s.StartTime < 0 || s.EndTime > MinutesPerDay-1 || s.StartTime > s.EndTime {
		return fmt.Errorf("invalid availability window %d-%d: need 0 <= start <= end <= %d",
			s.StartTime, s.EndTime, MinutesPerDay-1)
	}
	if !(s.Sunday || s.Monday || s.Tuesday || s.Wednesday || s.Thursday || s.Friday || s.Saturday) {
		return fmt.Errorf("availability slot must include at least one day of the week")
	}
	return nil
}

// EventType describes a kind of need (airport run, bus station, interpreter...)
type EventType struct {
	ID          string
	Name        string
	Description string
}

// NeedEvent is a request for volunteer help at a date, time and location.
// Date carries only the calendar day (midnight in the configured location).
type NeedEvent struct {
	ID              string
	EventTypeID     string
	Date            time.Time
	TimeOfNeed      int // minutes past midnight
	Duration        int // minutes
	VolunteerCount  int
	AffectedPersons int
	Location        string
	Notes           string
	CreatedBy       string // coordinator volunteer ID
	Complete        bool
	Cancelled       bool
	LastAlertTime   int64 // epoch seconds, 0 = never alerted
	RecurrenceID    string
}

// Start returns the start of the event window in minutes past midnight
func (e *NeedEvent) Start() int {
	return e.TimeOfNeed
}

// End returns the end of the event window in minutes past midnight
func (e *NeedEvent) End() int {
	return e.TimeOfNeed + e.Duration
}

// IsOpen reports whether the event can still be alerted and responded to
func (e *NeedEvent) IsOpen() bool {
	return !e.Complete && !e.Cancelled
}

// StartsAt returns the absolute start instant of the event
func (e *NeedEvent) StartsAt() time.Time {
	y, m, d := e.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.Date.Location()).Add(time.Duration(e.TimeOfNeed) * time.Minute)
}

// SameDay reports whether two events fall on the same calendar date
func (e *NeedEvent) SameDay(other *NeedEvent) bool {
	y1, m1, d1 := e.Date.Date()
	y2, m2, d2 := other.Date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Validate checks the event fields and that it does not span midnight
func (e *NeedEvent) Validate() error {
	if e.TimeOfNeed < 0 || e.TimeOfNeed >= MinutesPerDay {
		return fmt.Errorf("time of need %d out of range", e.TimeOfNeed)
	}
	if e.Duration < 1 {
		return fmt.Errorf("duration must be positive, got %d", e.Duration)
	}
	if e.End() > MinutesPerDay {
		return fmt.Errorf("event may not span midnight (ends at minute %d)", e.End())
	}
	if e.VolunteerCount < 1 {
		return fmt.Errorf("volunteer count must be at least 1, got %d", e.VolunteerCount)
	}
	return nil
}

// ResponseState is a volunteer's relationship to a need event.
// The zero value means no relation.
type ResponseState string

const (
	ResponseNone      ResponseState = ""
	ResponseCommitted ResponseState = "committed"
	ResponseDeclined  ResponseState = "declined"
)

// Response is the ledger row for one (volunteer, event) pair.
// At most one exists per pair; its absence is ResponseNone.
type Response struct {
	VolunteerID string
	EventID     string
	State       ResponseState
	UpdatedAt   time.Time
	RemindedAt  *time.Time
}

// ResponseToken binds an opaque token to one (volunteer, event) pair
type ResponseToken struct {
	Token       string
	VolunteerID string
	EventID     string
	CreatedAt   time.Time
}

// FormatMinutes renders minutes past midnight as H:MM
func FormatMinutes(mpm int) string {
	return fmt.Sprintf("%d:%02d", mpm/60, mpm%60)
}

// ParseMinutes parses an HH:MM string into minutes past midnight
func ParseMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM): %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
