package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitgrid/trainer-booking/internal/booking"
	"github.com/fitgrid/trainer-booking/internal/config"
	"github.com/fitgrid/trainer-booking/internal/db"
	"github.com/fitgrid/trainer-booking/internal/notify"
	redisclient "github.com/fitgrid/trainer-booking/internal/redis"
)

// The reconcile worker sweeps for pending bookings that still overlap a
// confirmed one — leftovers of a cascade that partially failed — and
// cancels them.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reconcile-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running reconcile worker in env=%s interval=%s window=%s", cfg.Env, cfg.ReconcileInterval, cfg.ReconcileWindow)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	store := booking.NewPgStore(pgPool)
	locker := redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL)
	notifier := notify.NewRedisNotifier(rdb)
	svc := booking.NewService(store, store, locker, notifier, cfg.GranularityMinutes)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.ReconcileWindow)

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping reconcile worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.ReconcileWindow)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, window time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	since := time.Now().Add(-window)

	start := time.Now()
	if err := svc.ReconcileStrayPending(runCtx, since); err != nil {
		log.Printf("reconcile run error: %v", err)
		return
	}
	log.Printf("reconcile run complete in %s", time.Since(start))
}
