package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"churnpulse/pkg/bus"
	"churnpulse/pkg/health"
	"churnpulse/pkg/model"
	"churnpulse/pkg/processor"
	"churnpulse/pkg/store"
)

func main() {
	dbURL := mustEnv("DATABASE_URL")
	brokers := strings.Split(mustEnv("KAFKA_BROKERS"), ",")
	modelPath := mustEnv("MODEL_PATH")
	topic := getEnv("KAFKA_TOPIC", "user_events")
	groupID := getEnv("KAFKA_GROUP_ID", "churn_processor_group_v2")
	sinkURL := getEnv("ALERT_SINK_URL", "http://localhost:8000")
	adminPort := getEnv("ADMIN_PORT", "8082")

	m, err := model.Load(modelPath)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	if err := model.ValidateMapping(m); err != nil {
		log.Fatalf("Model/schema mapping mismatch: %v", err)
	}
	log.Printf("[processor] loaded model %s version %s", m.ModelID, m.Version)

	st, err := store.Open(dbURL)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer st.Close()

	consumer, err := bus.NewConsumer(bus.Config{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		CertFile: os.Getenv("KAFKA_CERT_FILE"),
		KeyFile:  os.Getenv("KAFKA_KEY_FILE"),
		CAFile:   os.Getenv("KAFKA_CA_FILE"),
	})
	if err != nil {
		log.Fatalf("Failed to build consumer: %v", err)
	}
	defer consumer.Close()

	// Optional hot read model for dashboards.
	var cache *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cache = redis.NewClient(&redis.Options{Addr: addr})
		defer cache.Close()
	}

	admin := health.NewServer("processor", adminPort)
	go func() {
		log.Printf("[processor] admin endpoint on :%s", adminPort)
		if err := admin.Start(); err != nil {
			log.Fatalf("Admin server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc := processor.New(st, m, processor.NewAlertClient(sinkURL), cache)
	proc.Run(ctx, consumer)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Printf("[processor] admin shutdown: %v", err)
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
