package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process AvailabilityStore + BookingStore used by
// tests and local development. It mirrors the Postgres store's semantics,
// including compare-and-set status updates.
type MemoryStore struct {
	mu       sync.Mutex
	clients  map[uuid.UUID]Client
	trainers map[uuid.UUID]Trainer
	windows  []AvailabilityWindow
	bookings map[uuid.UUID]Booking
	events   []EventLog

	// FailUpdateStatus makes UpdateStatus fail for the listed booking IDs;
	// tests use it to exercise partial cascade failures.
	FailUpdateStatus map[uuid.UUID]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:  make(map[uuid.UUID]Client),
		trainers: make(map[uuid.UUID]Trainer),
		bookings: make(map[uuid.UUID]Booking),
	}
}

func (m *MemoryStore) AddClient(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
}

func (m *MemoryStore) AddTrainer(t Trainer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainers[t.ID] = t
}

func (m *MemoryStore) AddWindow(w AvailabilityWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, w)
}

func (m *MemoryStore) Events() []EventLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryStore) GetClientByID(_ context.Context, id uuid.UUID) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &c, nil
}

func (m *MemoryStore) GetTrainerByID(_ context.Context, id uuid.UUID) (*Trainer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trainers[id]
	if !ok {
		return nil, ErrTrainerNotFound
	}
	return &t, nil
}

func (m *MemoryStore) ListWindows(_ context.Context, trainerID uuid.UUID, date time.Time) ([]AvailabilityWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []AvailabilityWindow
	for _, w := range m.windows {
		if w.TrainerID == trainerID && w.AppliesTo(date) {
			result = append(result, w)
		}
	}
	return result, nil
}

func (m *MemoryStore) GetBookingByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *MemoryStore) ListActive(_ context.Context, trainerID uuid.UUID, date time.Time) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	date = DateOnly(date)
	var result []Booking
	for _, b := range m.bookings {
		if b.TrainerID != trainerID || !b.Date.Equal(date) {
			continue
		}
		if b.Status == StatusPending || b.Status == StatusConfirmed {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartMinute != result[j].StartMinute {
			return result[i].StartMinute < result[j].StartMinute
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) Insert(_ context.Context, b Booking) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Date = DateOnly(b.Date)
	m.bookings[b.ID] = b
	return &b, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailUpdateStatus[id]; ok {
		return nil, err
	}
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	m.bookings[id] = b
	return &b, nil
}

func (m *MemoryStore) ListByClient(_ context.Context, clientID uuid.UUID, limit, offset int) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Booking
	for _, b := range m.bookings {
		if b.ClientID == clientID {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].StartMinute > all[j].StartMinute
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) ListConfirmedDates(_ context.Context, since time.Time) ([]TrainerDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	since = DateOnly(since)
	seen := make(map[TrainerDate]bool)
	var result []TrainerDate
	for _, b := range m.bookings {
		if b.Status != StatusConfirmed || b.Date.Before(since) {
			continue
		}
		td := TrainerDate{TrainerID: b.TrainerID, Date: b.Date}
		if seen[td] {
			continue
		}
		seen[td] = true
		result = append(result, td)
	}
	return result, nil
}

func (m *MemoryStore) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// MemoryLocker satisfies the schedule Locker with per-key in-process
// mutexes. Single-process only; real deployments use the Redis locker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *MemoryLocker) WithScheduleLock(ctx context.Context, trainerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := trainerID.String() + ":" + DateOnly(date).Format("2006-01-02")

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
