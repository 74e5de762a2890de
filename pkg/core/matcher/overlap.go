package matcher

import "github.com/jakechorley/unter/pkg/core/model"

// Overlaps reports whether two events occupy overlapping windows.
//
// Events on different calendar dates never overlap. On the same date the
// windows are treated as closed intervals, so an event ending exactly when
// another starts counts as overlapping; a volunteer is never booked back to back.
func Overlaps(a, b *model.NeedEvent) bool {
	if !a.SameDay(b) {
		return false
	}

	aStart, aEnd := a.Start(), a.End()
	bStart, bEnd := b.Start(), b.End()

	return within(aStart, bStart, bEnd) ||
		within(aEnd, bStart, bEnd) ||
		within(bStart, aStart, aEnd) ||
		within(bEnd, aStart, aEnd)
}

// OverlapsAny reports whether event overlaps at least one of events
func OverlapsAny(event *model.NeedEvent, events []model.NeedEvent) bool {
	for i := range events {
		if Overlaps(event, &events[i]) {
			return true
		}
	}
	return false
}

func within(x, lo, hi int) bool {
	return lo <= x && x <= hi
}
