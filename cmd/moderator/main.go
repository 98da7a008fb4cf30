package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pairline/relay/internal/flagged"
	"github.com/pairline/relay/internal/messaging"
)

func main() {
	log.Println("Starting Pairline moderation consumer...")

	// Redis setup.
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	// NATS setup.
	natsConfig := messaging.DefaultConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "pairline-moderator"

	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	flagStore := flagged.NewStore(rdb)

	// Tally reports per reported label; flag for review past the threshold.
	err = natsClient.SubscribeReportCreated(func(ev messaging.ReportCreatedEvent) {
		log.Printf("[moderator] report=%s room=%s reported=%q", ev.ReportID, ev.Room, ev.ReportedLabel)

		if ev.ReportedLabel == "" {
			// Anonymous peer, nothing to tally against.
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		count, err := flagStore.RecordReport(ctx, ev.ReportedLabel)
		if err != nil {
			log.Printf("[moderator] failed to record report against %q: %v", ev.ReportedLabel, err)
			return
		}

		if count >= flagged.FlagThreshold {
			log.Printf("[moderator] FLAGGED label=%q reports=%d", ev.ReportedLabel, count)
			if err := flagStore.Flag(ctx, ev.ReportedLabel, "report threshold reached"); err != nil {
				log.Printf("[moderator] failed to flag %q: %v", ev.ReportedLabel, err)
			}
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to report events: %v", err)
	}

	log.Printf("Pairline moderation consumer running")
	log.Printf("  redis_addr: %s", redisAddr)
	log.Printf("  nats_url:   %s", natsConfig.URL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
	rdb.Close()
}
