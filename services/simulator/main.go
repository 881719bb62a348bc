package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"churnpulse/pkg/bus"
	"churnpulse/pkg/health"
	"churnpulse/pkg/simulator"
	"churnpulse/pkg/store"
)

func main() {
	dbURL := mustEnv("DATABASE_URL")
	brokers := strings.Split(mustEnv("KAFKA_BROKERS"), ",")
	topic := getEnv("KAFKA_TOPIC", "user_events")
	adminPort := getEnv("ADMIN_PORT", "8081")

	st, err := store.Open(dbURL)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer st.Close()

	pool, err := st.UserIDs(context.Background())
	if err != nil {
		log.Fatalf("Failed to fetch customer pool: %v", err)
	}
	if len(pool) == 0 {
		log.Fatalf("No customers found; run migrate-db with -seed first")
	}
	log.Printf("[simulator] fetched %d customer ids", len(pool))

	producer, err := bus.NewProducer(bus.Config{
		Brokers:  brokers,
		Topic:    topic,
		CertFile: os.Getenv("KAFKA_CERT_FILE"),
		KeyFile:  os.Getenv("KAFKA_KEY_FILE"),
		CAFile:   os.Getenv("KAFKA_CA_FILE"),
	})
	if err != nil {
		log.Fatalf("Failed to build producer: %v", err)
	}
	defer producer.Close()

	admin := health.NewServer("simulator", adminPort)
	go func() {
		log.Printf("[simulator] admin endpoint on :%s", adminPort)
		if err := admin.Start(); err != nil {
			log.Fatalf("Admin server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := simulator.New(st, producer, pool, time.Now().UnixNano())
	sim.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Printf("[simulator] admin shutdown: %v", err)
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s is required", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
