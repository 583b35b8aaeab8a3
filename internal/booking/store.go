package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClientNotFound  = errors.New("client not found")
	ErrTrainerNotFound = errors.New("trainer not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// AvailabilityStore exposes the trainer availability the engine reads.
// Windows are administered by trainer-facing flows outside this package;
// the engine never writes them.
type AvailabilityStore interface {
	// ListWindows returns every window that could govern (trainerID, date):
	// weekly windows for the date's weekday and date-specific entries for
	// the date itself, blocked ones included.
	ListWindows(ctx context.Context, trainerID uuid.UUID, date time.Time) ([]AvailabilityWindow, error)
}

// BookingStore contains all booking DB interactions needed by the service.
type BookingStore interface {
	GetClientByID(ctx context.Context, id uuid.UUID) (*Client, error)
	GetTrainerByID(ctx context.Context, id uuid.UUID) (*Trainer, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// ListActive returns the trainer's pending and confirmed bookings for a
	// date; the conflict checks run against this set.
	ListActive(ctx context.Context, trainerID uuid.UUID, date time.Time) ([]Booking, error)

	Insert(ctx context.Context, b Booking) (*Booking, error)

	// UpdateStatus transitions a booking from one status to another as a
	// single compare-and-set; it returns ErrBookingNotFound when the booking
	// is missing or no longer in the from status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error)

	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Booking, error)

	// ListConfirmedDates feeds the reconcile sweep: (trainer, date) pairs
	// holding at least one confirmed booking on or after since.
	ListConfirmedDates(ctx context.Context, since time.Time) ([]TrainerDate, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

type TrainerDate struct {
	TrainerID uuid.UUID
	Date      time.Time
}
