package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitgrid/trainer-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	trainerIDs, err := seedTrainers(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed trainers: %v", err)
	}
	if err := seedClients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed clients: %v", err)
	}
	if err := seedAvailability(context.Background(), pool, trainerIDs); err != nil {
		log.Fatalf("seed availability windows: %v", err)
	}

	log.Println("seed complete")
}

func seedTrainers(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d trainers", count)

	specialties := []string{
		"Strength & Conditioning",
		"Yoga",
		"Pilates",
		"CrossFit",
		"Boxing",
		"Running",
		"Mobility",
		"Swimming",
		"Rehabilitation",
		"Nutrition Coaching",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO trainers (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("trainers seeded")
	return ids, nil
}

func seedClients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d clients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("clients seeded: %d/%d", end, count)
	}

	log.Println("clients seeded")
	return nil
}

// seedAvailability gives every trainer a working week of windows: a
// morning and an afternoon block on 3-5 weekdays, with the occasional
// blocked date-specific override.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, trainerIDs []uuid.UUID) error {
	log.Printf("seeding availability for %d trainers", len(trainerIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, trainerID := range trainerIDs {
		days := gofakeit.Number(3, 5)
		for d := 1; d <= days; d++ { // Monday..Friday
			// morning block
			morningStart := gofakeit.Number(6, 9) * 60
			if err := insertWindow(ctx, tx, trainerID, &d, nil, morningStart, morningStart+4*60, false); err != nil {
				return err
			}
			// afternoon block
			afternoonStart := gofakeit.Number(13, 16) * 60
			if err := insertWindow(ctx, tx, trainerID, &d, nil, afternoonStart, afternoonStart+4*60, false); err != nil {
				return err
			}
		}

		// one in five trainers gets a blocked day off next week
		if gofakeit.Number(0, 4) == 0 {
			dayOff := time.Now().UTC().AddDate(0, 0, gofakeit.Number(3, 9))
			dayOff = time.Date(dayOff.Year(), dayOff.Month(), dayOff.Day(), 0, 0, 0, 0, time.UTC)
			if err := insertWindow(ctx, tx, trainerID, nil, &dayOff, 0, 24*60-1, true); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("availability windows seeded")
	return nil
}

func insertWindow(ctx context.Context, tx pgx.Tx, trainerID uuid.UUID, weekday *int, date *time.Time, startMinute, endMinute int, blocked bool) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO availability_windows (id, trainer_id, weekday, date, start_minute, end_minute, blocked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, uuid.New(), trainerID, weekday, date, startMinute, endMinute, blocked)
	return err
}
