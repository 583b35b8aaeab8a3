package booking

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

type Client struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Trainer struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityWindow is one interval during which a trainer accepts
// bookings. Exactly one of Weekday (recurring weekly) or Date (one-off)
// is set. A Blocked window removes availability: a blocked date-specific
// entry suppresses the weekly windows for that date.
type AvailabilityWindow struct {
	ID          uuid.UUID
	TrainerID   uuid.UUID
	Weekday     *time.Weekday
	Date        *time.Time
	StartMinute MinuteOfDay
	EndMinute   MinuteOfDay
	Blocked     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AppliesTo reports whether the window is in effect on the given date.
func (w AvailabilityWindow) AppliesTo(date time.Time) bool {
	date = DateOnly(date)
	if w.Date != nil {
		return DateOnly(*w.Date).Equal(date)
	}
	if w.Weekday != nil {
		return *w.Weekday == date.Weekday()
	}
	return false
}

// Booking is one client's claim on a trainer's time range.
type Booking struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	TrainerID       uuid.UUID
	Date            time.Time
	StartMinute     MinuteOfDay
	EndMinute       MinuteOfDay
	DurationMinutes int
	Status          BookingStatus
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OverlapsRange reports whether the booking intersects [start,end) on the
// half-open rule.
func (b Booking) OverlapsRange(start, end MinuteOfDay) bool {
	return Overlaps(b.StartMinute, b.EndMinute, start, end)
}

// CandidateSlot is a generated, not-yet-persisted range a client may
// request. PendingRequests is filled only on the listing path.
type CandidateSlot struct {
	Date            time.Time
	StartMinute     MinuteOfDay
	EndMinute       MinuteOfDay
	PendingRequests int
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
