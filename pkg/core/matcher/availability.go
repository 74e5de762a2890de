package matcher

import (
	"time"

	"github.com/jakechorley/unter/pkg/core/model"
)

// AvailableVolunteers returns the candidates whose declared weekly availability
// covers the whole event window on the event's day of week.
//
// Only volunteers holding the respond_to_need permission are considered. A
// volunteer is returned once, on the first slot that matches. Existing
// commitments are not considered here; see AlertableVolunteers.
func AvailableVolunteers(event *model.NeedEvent, candidates []model.Volunteer) []model.Volunteer {
	weekday := event.Date.Weekday()
	start, end := event.Start(), event.End()

	result := []model.Volunteer{}
	for _, vol := range candidates {
		if !vol.HasPermission(model.PermissionRespondToNeed) {
			continue
		}
		if hasMatchingSlot(vol.Availability, weekday, start, end) {
			result = append(result, vol)
		}
	}
	return result
}

// IsAvailable tests a single volunteer against a single event
func IsAvailable(vol *model.Volunteer, event *model.NeedEvent) bool {
	return len(AvailableVolunteers(event, []model.Volunteer{*vol})) == 1
}

func hasMatchingSlot(slots []model.AvailabilitySlot, weekday time.Weekday, start, end int) bool {
	for i := range slots {
		if slots[i].OnWeekday(weekday) && slots[i].Contains(start, end) {
			return true
		}
	}
	return false
}
