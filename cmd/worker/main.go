package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/config"
	"sessionattendance/internal/queue"
	"sessionattendance/internal/store"
)

// Worker consumes marked events and rewarms the day summary cache.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" || cfg.StoreBackend == "memory" {
		log.Fatalf("worker needs shared backends, got store=%s queue=%s", cfg.StoreBackend, cfg.QueueBackend)
	}

	db, err := store.NewDB(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis not reachable at %s, will keep retrying", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, "attendance:marked")
	agg := attendance.NewAggregator(attendance.NewRepository(db.Client))
	cache := store.NewSummaryCache(redisClient.Client, cfg.SummaryCacheTTL)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for marked events...")
	cache.Warm(ctx, agg, messages)
	log.Println("worker stopped")
}
