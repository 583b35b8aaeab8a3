package booking

import (
	"sort"
	"time"
)

// DefaultGranularityMinutes is the step between generated slot starts.
const DefaultGranularityMinutes = 15

// windowsInEffect selects the availability windows that govern a date.
// Date-specific entries take precedence: when any exist for the date the
// weekly windows are ignored entirely, so a single blocked override removes
// an otherwise recurring day. Blocked windows never produce slots.
func windowsInEffect(windows []AvailabilityWindow, date time.Time) []AvailabilityWindow {
	var dated, weekly []AvailabilityWindow
	for _, w := range windows {
		if !w.AppliesTo(date) {
			continue
		}
		if w.Date != nil {
			dated = append(dated, w)
		} else {
			weekly = append(weekly, w)
		}
	}

	source := weekly
	if len(dated) > 0 {
		source = dated
	}

	open := source[:0:0]
	for _, w := range source {
		if !w.Blocked {
			open = append(open, w)
		}
	}
	return open
}

// GenerateSlots expands a trainer's availability windows for one date into
// candidate slots of durationMinutes, stepping by granularityMinutes from
// each window's start. Overlapping windows may produce the same start time;
// duplicates are collapsed. Result is ordered by start time. A date with no
// usable windows yields an empty list, not an error.
func GenerateSlots(windows []AvailabilityWindow, date time.Time, durationMinutes, granularityMinutes int) []CandidateSlot {
	if durationMinutes <= 0 {
		return nil
	}
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}

	date = DateOnly(date)
	seen := make(map[MinuteOfDay]bool)
	var slots []CandidateSlot

	for _, w := range windowsInEffect(windows, date) {
		for cursor := w.StartMinute; cursor+MinuteOfDay(durationMinutes) <= w.EndMinute; cursor += MinuteOfDay(granularityMinutes) {
			if seen[cursor] {
				continue
			}
			seen[cursor] = true
			slots = append(slots, CandidateSlot{
				Date:        date,
				StartMinute: cursor,
				EndMinute:   cursor + MinuteOfDay(durationMinutes),
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartMinute < slots[j].StartMinute
	})
	return slots
}

// IsFree reports whether the candidate range conflicts with none of the
// given bookings. Callers choose the booking set: the listing path passes
// only confirmed bookings, the cascade passes pending and confirmed.
func IsFree(candidate CandidateSlot, bookings []Booking) bool {
	for _, b := range bookings {
		if b.OverlapsRange(candidate.StartMinute, candidate.EndMinute) {
			return false
		}
	}
	return true
}

// AnnotateSlots fills each candidate's PendingRequests count and drops
// candidates that collide with a confirmed booking. Pending requests are
// informational: the slot stays offered, flagged as already requested.
func AnnotateSlots(candidates []CandidateSlot, active []Booking) []CandidateSlot {
	var confirmed, pending []Booking
	for _, b := range active {
		switch b.Status {
		case StatusConfirmed:
			confirmed = append(confirmed, b)
		case StatusPending:
			pending = append(pending, b)
		}
	}

	out := candidates[:0:0]
	for _, c := range candidates {
		if !IsFree(c, confirmed) {
			continue
		}
		for _, p := range pending {
			if p.OverlapsRange(c.StartMinute, c.EndMinute) {
				c.PendingRequests++
			}
		}
		out = append(out, c)
	}
	return out
}
