package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements AvailabilityStore and BookingStore on Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var email *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&email,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	c.Email = email
	return &c, nil
}

func scanTrainer(row pgx.Row) (*Trainer, error) {
	var t Trainer
	var specialty *string

	err := row.Scan(
		&t.ID,
		&t.Name,
		&specialty,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}

	t.Specialty = specialty
	return &t, nil
}

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow
	var weekday *int
	var date *time.Time
	var start, end int

	err := row.Scan(
		&w.ID,
		&w.TrainerID,
		&weekday,
		&date,
		&start,
		&end,
		&w.Blocked,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if weekday != nil {
		wd := time.Weekday(*weekday)
		w.Weekday = &wd
	}
	w.Date = date
	w.StartMinute = MinuteOfDay(start)
	w.EndMinute = MinuteOfDay(end)
	return &w, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var start, end int

	err := row.Scan(
		&b.ID,
		&b.ClientID,
		&b.TrainerID,
		&b.Date,
		&start,
		&end,
		&b.DurationMinutes,
		&b.Status,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.StartMinute = MinuteOfDay(start)
	b.EndMinute = MinuteOfDay(end)
	b.Date = DateOnly(b.Date)
	return &b, nil
}

const bookingColumns = `id, client_id, trainer_id, date, start_minute, end_minute, duration_minutes, status, notes, created_at, updated_at`

// Interface methods

func (s *PgStore) GetClientByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

func (s *PgStore) GetTrainerByID(ctx context.Context, id uuid.UUID) (*Trainer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM trainers
		WHERE id = $1
	`, id)
	return scanTrainer(row)
}

func (s *PgStore) ListWindows(ctx context.Context, trainerID uuid.UUID, date time.Time) ([]AvailabilityWindow, error) {
	date = DateOnly(date)

	rows, err := s.pool.Query(ctx, `
		SELECT id, trainer_id, weekday, date, start_minute, end_minute, blocked, created_at, updated_at
		FROM availability_windows
		WHERE trainer_id = $1
		  AND (weekday = $2 OR date = $3)
	`, trainerID, int(date.Weekday()), date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (s *PgStore) ListActive(ctx context.Context, trainerID uuid.UUID, date time.Time) ([]Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE trainer_id = $1
		  AND date = $2
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_minute, created_at
	`, trainerID, DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (s *PgStore) Insert(ctx context.Context, b Booking) (*Booking, error) {
	id := b.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, client_id, trainer_id, date, start_minute, end_minute, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+bookingColumns+`
	`, id, b.ClientID, b.TrainerID, DateOnly(b.Date), int(b.StartMinute), int(b.EndMinute), b.DurationMinutes, b.Status, b.Notes)

	return scanBooking(row)
}

func (s *PgStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingColumns+`
	`, id, to, from)

	return scanBooking(row)
}

func (s *PgStore) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE client_id = $1
		ORDER BY date DESC, start_minute DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (s *PgStore) ListConfirmedDates(ctx context.Context, since time.Time) ([]TrainerDate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT trainer_id, date
		FROM bookings
		WHERE status = 'confirmed'
		  AND date >= $1
	`, DateOnly(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TrainerDate
	for rows.Next() {
		var td TrainerDate
		if err := rows.Scan(&td.TrainerID, &td.Date); err != nil {
			return nil, err
		}
		td.Date = DateOnly(td.Date)
		result = append(result, td)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	var bookingID *uuid.UUID
	if ev.BookingID != nil {
		bookingID = ev.BookingID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, bookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
