package matcher

import "github.com/jakechorley/unter/pkg/core/model"

// AlertableVolunteers narrows the volunteers available for event to those with
// no live commitment to any event overlapping it.
//
// committedEvents maps volunteer ID to the events that volunteer is committed to.
// Because an event overlaps itself, volunteers already committed to event are
// excluded as well.
func AlertableVolunteers(event *model.NeedEvent, candidates []model.Volunteer, committedEvents map[string][]model.NeedEvent) []model.Volunteer {
	available := AvailableVolunteers(event, candidates)

	result := []model.Volunteer{}
	for _, vol := range available {
		if OverlapsAny(event, committedEvents[vol.ID]) {
			continue
		}
		result = append(result, vol)
	}
	return result
}

// IsFullyServed reports whether committedCount meets the event's required volunteer count
func IsFullyServed(event *model.NeedEvent, committedCount int) bool {
	return event.VolunteerCount <= committedCount
}

// EventsForVolunteer returns the events vol could still take on.
//
// An event qualifies when it is open, vol has not committed to it, it is not
// fully served (commitCounts maps event ID to live commitment count), it does
// not overlap anything vol is committed to, and vol's availability covers it.
func EventsForVolunteer(vol *model.Volunteer, events []model.NeedEvent, committed []model.NeedEvent, commitCounts map[string]int) []model.NeedEvent {
	committedIDs := make(map[string]bool, len(committed))
	for _, ev := range committed {
		committedIDs[ev.ID] = true
	}

	result := []model.NeedEvent{}
	for i := range events {
		ev := &events[i]
		if !ev.IsOpen() || committedIDs[ev.ID] {
			continue
		}
		if IsFullyServed(ev, commitCounts[ev.ID]) {
			continue
		}
		if OverlapsAny(ev, committed) {
			continue
		}
		if !IsAvailable(vol, ev) {
			continue
		}
		result = append(result, *ev)
	}
	return result
}
