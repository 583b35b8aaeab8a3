package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fitgrid/trainer-booking/internal/notify"
	redisclient "github.com/fitgrid/trainer-booking/internal/redis"
)

var (
	// ErrInvalidSlot means the requested range matches no generated candidate.
	ErrInvalidSlot = errors.New("requested range does not match an offered slot")
	// ErrSlotUnavailable means a confirmed booking already occupies the range.
	ErrSlotUnavailable = errors.New("slot already has a confirmed booking")
	// ErrInvalidState means the booking is not in a status the transition allows.
	ErrInvalidState = errors.New("invalid booking status transition")
	// ErrScheduleBusy means the trainer's day is being mutated elsewhere, retry.
	ErrScheduleBusy = errors.New("trainer schedule is busy, please retry")
	// ErrStoreTimeout means a store call ran out of time before completing.
	ErrStoreTimeout = errors.New("store operation timed out")
)

// CascadeError records one pending booking the cascade failed to cancel.
// The confirmation itself stands; these are retried by the reconcile sweep.
type CascadeError struct {
	BookingID uuid.UUID
	Err       error
}

func (e CascadeError) Error() string {
	return fmt.Sprintf("cascade cancel %s: %v", e.BookingID, e.Err)
}

// ConfirmResult reports a confirmation and everything it displaced.
type ConfirmResult struct {
	Booking       *Booking
	Cancelled     []Booking
	CascadeErrors []CascadeError
}

type Service struct {
	availability AvailabilityStore
	bookings     BookingStore
	locker       redisclient.Locker
	notifier     notify.Notifier
	granularity  int
}

func NewService(availability AvailabilityStore, bookings BookingStore, locker redisclient.Locker, notifier notify.Notifier, granularityMinutes int) *Service {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}
	return &Service{
		availability: availability,
		bookings:     bookings,
		locker:       locker,
		notifier:     notifier,
		granularity:  granularityMinutes,
	}
}

// ListOpenSlots returns the bookable candidates for a trainer's date.
// Confirmed bookings remove candidates; pending ones only raise the
// candidate's PendingRequests count, since many clients may request the
// same range until the trainer picks one.
func (s *Service) ListOpenSlots(ctx context.Context, trainerID uuid.UUID, date time.Time, durationMinutes, granularityMinutes int) ([]CandidateSlot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidSlot)
	}
	if granularityMinutes <= 0 {
		granularityMinutes = s.granularity
	}

	if _, err := s.bookings.GetTrainerByID(ctx, trainerID); err != nil {
		if errors.Is(err, ErrTrainerNotFound) {
			return nil, err
		}
		return nil, s.storeFail("load trainer", err)
	}

	windows, err := s.availability.ListWindows(ctx, trainerID, date)
	if err != nil {
		return nil, s.storeFail("load availability windows", err)
	}

	candidates := GenerateSlots(windows, date, durationMinutes, granularityMinutes)
	if len(candidates) == 0 {
		return nil, nil
	}

	active, err := s.bookings.ListActive(ctx, trainerID, date)
	if err != nil {
		return nil, s.storeFail("load active bookings", err)
	}

	return AnnotateSlots(candidates, active), nil
}

// RequestBooking places a client's claim on a slot as a pending booking.
// Other pending claims on the same range never block the request; only an
// already-confirmed overlap does.
func (s *Service) RequestBooking(ctx context.Context, clientID, trainerID uuid.UUID, date time.Time, start MinuteOfDay, durationMinutes int, notes string) (*Booking, error) {
	if durationMinutes <= 0 || !start.Valid() {
		return nil, ErrInvalidSlot
	}

	if _, err := s.bookings.GetClientByID(ctx, clientID); err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, err
		}
		return nil, s.storeFail("load client", err)
	}
	if _, err := s.bookings.GetTrainerByID(ctx, trainerID); err != nil {
		if errors.Is(err, ErrTrainerNotFound) {
			return nil, err
		}
		return nil, s.storeFail("load trainer", err)
	}

	date = DateOnly(date)
	var created *Booking

	err := s.locker.WithScheduleLock(ctx, trainerID, date, func(lockCtx context.Context) error {
		windows, err := s.availability.ListWindows(lockCtx, trainerID, date)
		if err != nil {
			return s.storeFail("load availability windows", err)
		}

		// The request must coincide exactly with a generated candidate.
		end := start + MinuteOfDay(durationMinutes)
		matched := false
		for _, c := range GenerateSlots(windows, date, durationMinutes, s.granularity) {
			if c.StartMinute == start {
				matched = true
				break
			}
		}
		if !matched {
			return ErrInvalidSlot
		}

		// Listing already hides confirmed ranges; this re-check inside the
		// lock closes the race between listing and requesting.
		active, err := s.bookings.ListActive(lockCtx, trainerID, date)
		if err != nil {
			return s.storeFail("load active bookings", err)
		}
		for _, b := range active {
			if b.Status == StatusConfirmed && b.OverlapsRange(start, end) {
				return ErrSlotUnavailable
			}
		}

		b := Booking{
			ID:              uuid.New(),
			ClientID:        clientID,
			TrainerID:       trainerID,
			Date:            date,
			StartMinute:     start,
			EndMinute:       end,
			DurationMinutes: durationMinutes,
			Status:          StatusPending,
			Notes:           notes,
		}
		inserted, err := s.bookings.Insert(lockCtx, b)
		if err != nil {
			return s.storeFail("insert pending booking", err)
		}
		created = inserted

		s.logEvent(lockCtx, inserted.ID, notify.EventBookingRequested, map[string]any{
			"client_id":  clientID.String(),
			"trainer_id": trainerID.String(),
			"date":       date.Format("2006-01-02"),
			"start":      start.String(),
		})
		s.notifier.Notify(lockCtx, notify.Event{
			Type:        notify.EventBookingRequested,
			RecipientID: trainerID,
			BookingID:   inserted.ID,
			Payload: map[string]any{
				"client_id": clientID.String(),
				"date":      date.Format("2006-01-02"),
				"start":     start.String(),
				"end":       end.String(),
			},
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return created, nil
}

// Confirm moves one pending booking to confirmed and cancels every other
// pending booking on the trainer's day that overlaps it. The confirmation
// is the authoritative write: once it lands, per-item cascade failures are
// collected in the result instead of rolling anything back.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*ConfirmResult, error) {
	target, err := s.bookings.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, s.storeFail("load booking", err)
	}

	var result *ConfirmResult

	err = s.locker.WithScheduleLock(ctx, target.TrainerID, target.Date, func(lockCtx context.Context) error {
		// Re-read inside the critical section: the cascade of a concurrent
		// confirmation may have cancelled the target already.
		current, err := s.bookings.GetBookingByID(lockCtx, id)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return err
			}
			return s.storeFail("load booking", err)
		}
		if current.Status != StatusPending {
			return ErrInvalidState
		}

		active, err := s.bookings.ListActive(lockCtx, current.TrainerID, current.Date)
		if err != nil {
			return s.storeFail("load active bookings", err)
		}

		// A confirmed overlap means the day no longer has room for this
		// range; confirming anyway would double-book the trainer.
		for _, b := range active {
			if b.ID == current.ID {
				continue
			}
			if b.Status == StatusConfirmed && b.OverlapsRange(current.StartMinute, current.EndMinute) {
				return ErrSlotUnavailable
			}
		}

		confirmed, err := s.bookings.UpdateStatus(lockCtx, current.ID, StatusPending, StatusConfirmed)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return ErrInvalidState
			}
			return s.storeFail("confirm booking", err)
		}

		res := &ConfirmResult{Booking: confirmed}

		for _, b := range active {
			if b.ID == confirmed.ID || b.Status != StatusPending {
				continue
			}
			if !b.OverlapsRange(confirmed.StartMinute, confirmed.EndMinute) {
				continue
			}

			cancelled, err := s.bookings.UpdateStatus(lockCtx, b.ID, StatusPending, StatusCancelled)
			if err != nil {
				if errors.Is(err, ErrBookingNotFound) {
					// Already transitioned elsewhere; nothing left to cancel.
					continue
				}
				res.CascadeErrors = append(res.CascadeErrors, CascadeError{BookingID: b.ID, Err: err})
				continue
			}

			res.Cancelled = append(res.Cancelled, *cancelled)
			s.logEvent(lockCtx, cancelled.ID, notify.EventBookingAutoCancelled, map[string]any{
				"confirmed_booking_id": confirmed.ID.String(),
			})
			s.notifier.Notify(lockCtx, notify.Event{
				Type:        notify.EventBookingAutoCancelled,
				RecipientID: cancelled.ClientID,
				BookingID:   cancelled.ID,
				Payload: map[string]any{
					"reason": "trainer confirmed a conflicting time slot",
				},
			})
		}

		s.logEvent(lockCtx, confirmed.ID, notify.EventBookingConfirmed, map[string]any{
			"displaced": len(res.Cancelled),
		})
		s.notifier.Notify(lockCtx, notify.Event{
			Type:        notify.EventBookingConfirmed,
			RecipientID: confirmed.ClientID,
			BookingID:   confirmed.ID,
		})

		result = res
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return result, nil
}

// Reject declines a pending booking. No cascade applies: rejecting never
// frees or removes other bookings.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*Booking, error) {
	target, err := s.bookings.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, s.storeFail("load booking", err)
	}
	if target.Status != StatusPending {
		return nil, ErrInvalidState
	}

	rejected, err := s.bookings.UpdateStatus(ctx, id, StatusPending, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidState
		}
		return nil, s.storeFail("reject booking", err)
	}

	s.logEvent(ctx, rejected.ID, notify.EventBookingRejected, map[string]any{})
	s.notifier.Notify(ctx, notify.Event{
		Type:        notify.EventBookingRejected,
		RecipientID: rejected.ClientID,
		BookingID:   rejected.ID,
	})

	return rejected, nil
}

// Complete records that a confirmed session took place. The core records
// the transition without enforcing that the session time has passed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	target, err := s.bookings.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, s.storeFail("load booking", err)
	}
	if target.Status != StatusConfirmed {
		return nil, ErrInvalidState
	}

	completed, err := s.bookings.UpdateStatus(ctx, id, StatusConfirmed, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, ErrInvalidState
		}
		return nil, s.storeFail("complete booking", err)
	}
	return completed, nil
}

// GetBooking retrieves a booking by ID
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.bookings.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}
		return nil, s.storeFail("get booking", err)
	}
	return b, nil
}

// ListBookingsByClient retrieves bookings for a specific client
func (s *Service) ListBookingsByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Booking, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	result, err := s.bookings.ListByClient(ctx, clientID, limit, offset)
	if err != nil {
		return nil, s.storeFail("list bookings by client", err)
	}
	return result, nil
}

// ReconcileTrainerDate re-runs the cascade for one trainer's day: any
// pending booking still overlapping a confirmed one is cancelled. This is
// the retry path for cascades that partially failed mid-confirmation.
func (s *Service) ReconcileTrainerDate(ctx context.Context, trainerID uuid.UUID, date time.Time) ([]Booking, error) {
	var cancelled []Booking

	err := s.locker.WithScheduleLock(ctx, trainerID, DateOnly(date), func(lockCtx context.Context) error {
		active, err := s.bookings.ListActive(lockCtx, trainerID, date)
		if err != nil {
			return s.storeFail("load active bookings", err)
		}

		var confirmed []Booking
		for _, b := range active {
			if b.Status == StatusConfirmed {
				confirmed = append(confirmed, b)
			}
		}
		if len(confirmed) == 0 {
			return nil
		}

		for _, b := range active {
			if b.Status != StatusPending {
				continue
			}
			stray := false
			for _, c := range confirmed {
				if b.OverlapsRange(c.StartMinute, c.EndMinute) {
					stray = true
					break
				}
			}
			if !stray {
				continue
			}

			upd, err := s.bookings.UpdateStatus(lockCtx, b.ID, StatusPending, StatusCancelled)
			if err != nil {
				if errors.Is(err, ErrBookingNotFound) {
					continue
				}
				log.Printf("failed to reconcile booking %s: %v", b.ID, err)
				continue
			}

			cancelled = append(cancelled, *upd)
			s.logEvent(lockCtx, upd.ID, notify.EventBookingAutoCancelled, map[string]any{
				"reason": "reconcile",
			})
			s.notifier.Notify(lockCtx, notify.Event{
				Type:        notify.EventBookingAutoCancelled,
				RecipientID: upd.ClientID,
				BookingID:   upd.ID,
				Payload: map[string]any{
					"reason": "trainer confirmed a conflicting time slot",
				},
			})
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return cancelled, nil
}

// ReconcileStrayPending is intended to be called by the worker periodically.
func (s *Service) ReconcileStrayPending(ctx context.Context, since time.Time) error {
	pairs, err := s.bookings.ListConfirmedDates(ctx, since)
	if err != nil {
		return s.storeFail("list confirmed trainer dates", err)
	}

	for _, p := range pairs {
		cancelled, err := s.ReconcileTrainerDate(ctx, p.TrainerID, p.Date)
		if err != nil {
			log.Printf("reconcile %s %s: %v", p.TrainerID, p.Date.Format("2006-01-02"), err)
			continue
		}
		if len(cancelled) > 0 {
			log.Printf("reconcile %s %s: cancelled %d stray pending bookings",
				p.TrainerID, p.Date.Format("2006-01-02"), len(cancelled))
		}
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	bID := bookingID

	ev := EventLog{
		EventType: eventType,
		BookingID: &bID,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := s.bookings.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for booking %s: %v", eventType, bookingID, err)
	}
}

func (s *Service) storeFail(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrStoreTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}
