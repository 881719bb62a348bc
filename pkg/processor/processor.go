// Package processor is the stream side of the pipeline: it turns each
// delivered event into an audit row, a fresh risk score, and a broadcast
// to the alert sink. The guiding rule is "keep the stream moving": no
// single event's failure may stall consumption of the next one.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"churnpulse/pkg/bus"
	"churnpulse/pkg/churn"
	"churnpulse/pkg/health"
	"churnpulse/pkg/model"
	"churnpulse/pkg/store"
)

// AlertThreshold is the strict lower bound for tagging a score as a
// churn alert; the boundary value itself classifies as a plain event.
const AlertThreshold = 0.70

var (
	eventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churn", Subsystem: "processor", Name: "events_processed_total",
			Help: "Events consumed from the bus by result."},
		[]string{"result"}, // scored, unknown_user, error
	)
	alertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churn", Subsystem: "processor", Name: "broadcasts_total",
			Help: "Payloads pushed to the alert sink by type."},
		[]string{"type"},
	)
	alertFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "churn", Subsystem: "processor", Name: "broadcast_failures_total",
			Help: "Alert sink pushes that failed and were dropped."},
	)
	handleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "churn", Subsystem: "processor", Name: "handle_duration_seconds",
			Help: "Per-event handling latency."},
	)
)

func init() {
	prometheus.MustRegister(eventsProcessed, alertsSent, alertFailures, handleDuration)
}

// StateStore is the slice of the store the processor needs.
type StateStore interface {
	AppendEvent(ctx context.Context, ev churn.Event) error
	GetCustomer(ctx context.Context, id string) (*churn.Customer, error)
	InsertPrediction(ctx context.Context, userID string, probability float64, at time.Time) error
	Ping(ctx context.Context) error
	Reconnect() error
}

// Scorer is the pretrained classifier.
type Scorer interface {
	Score(fv model.FeatureVector) (float64, error)
}

// AlertSender pushes tagged payloads downstream.
type AlertSender interface {
	Send(ctx context.Context, kind string, payload map[string]any) error
}

// Source delivers bus messages and accepts offset commits.
type Source interface {
	Fetch(ctx context.Context) (bus.Message, error)
	Commit(ctx context.Context, m bus.Message) error
}

// Processor scores customers in response to their events.
type Processor struct {
	store  StateStore
	scorer Scorer
	alerts AlertSender
	cache  *redis.Client // optional latest-score read model; nil disables it
}

// New builds a processor. cache may be nil.
func New(st StateStore, scorer Scorer, alerts AlertSender, cache *redis.Client) *Processor {
	return &Processor{store: st, scorer: scorer, alerts: alerts, cache: cache}
}

// Handle runs one event through the pipeline:
// logged -> feature-refreshed -> scored -> persisted -> alerted.
// Every step is safe to repeat under at-least-once redelivery. A non-nil
// return means the store looked unhealthy and the event was abandoned;
// the bus's redelivery is the recovery path for its state mutation.
func (p *Processor) Handle(ctx context.Context, ev churn.Event) error {
	start := time.Now()
	defer func() { handleDuration.Observe(time.Since(start).Seconds()) }()

	// Audit first, verbatim. A transient failure here is logged but does
	// not block scoring; duplicated audit rows under redelivery are fine.
	if err := p.store.AppendEvent(ctx, ev); err != nil {
		log.Printf("[processor] audit insert failed for %s: %v", ev.UserID, err)
	}

	// Re-read the whole row: the event says what changed, not the full
	// feature vector, and a burst of events for one customer coalesces
	// into equivalent scores computed from the same state.
	cust, err := p.store.GetCustomer(ctx, ev.UserID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[processor] user %s not found, skipping", ev.UserID)
		eventsProcessed.WithLabelValues("unknown_user").Inc()
		return nil
	}
	if err != nil {
		eventsProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh features for %s: %w", ev.UserID, err)
	}

	probability, err := p.scorer.Score(model.BuildVector(cust))
	if err != nil {
		eventsProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("score %s: %w", ev.UserID, err)
	}

	if err := p.store.InsertPrediction(ctx, ev.UserID, probability, time.Now()); err != nil {
		eventsProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("persist prediction for %s: %w", ev.UserID, err)
	}
	eventsProcessed.WithLabelValues("scored").Inc()

	p.cacheScore(ctx, ev.UserID, probability)
	p.broadcast(ctx, ev, probability)
	return nil
}

// cacheScore mirrors the latest score into Redis for dashboard reads.
// Cache loss is telemetry loss, never an event failure.
func (p *Processor) cacheScore(ctx context.Context, userID string, probability float64) {
	if p.cache == nil {
		return
	}
	key := "churn:score:" + userID
	if err := p.cache.Set(ctx, key, probability, 0).Err(); err != nil {
		log.Printf("[processor] score cache write failed for %s: %v", userID, err)
	}
}

// Classify tags a probability: strictly above the threshold is an alert.
func Classify(probability float64) string {
	if probability > AlertThreshold {
		return "churn_alert"
	}
	return "new_event"
}

func (p *Processor) broadcast(ctx context.Context, ev churn.Event, probability float64) {
	kind := Classify(probability)
	payload := map[string]any{
		"event_id":          ev.EventID,
		"event_type":        ev.EventType,
		"user_id":           ev.UserID,
		"details":           ev.Details,
		"timestamp":         ev.Timestamp,
		"churn_probability": probability,
	}
	if kind == "churn_alert" {
		log.Printf("[processor] high churn risk for user %s (score %.2f)", ev.UserID, probability)
	}
	if err := p.alerts.Send(ctx, kind, payload); err != nil {
		// Best effort by design: alerting must not stall scoring.
		alertFailures.Inc()
		log.Printf("[processor] broadcast failed for %s: %v", ev.UserID, err)
		return
	}
	alertsSent.WithLabelValues(kind).Inc()
}

// Run consumes the source until ctx is cancelled. A handled message is
// committed; an abandoned one is not, so it stays covered by redelivery.
// Store trouble triggers a reconnect and the loop resumes with the next
// delivered event.
func (p *Processor) Run(ctx context.Context, src Source) {
	log.Printf("[processor] listening for user events")
	for {
		msg, err := src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[processor] shutting down")
				return
			}
			log.Printf("[processor] fetch failed: %v", err)
			continue
		}
		log.Printf("[processor] received %s for user %s", msg.Event.EventType, msg.Event.UserID)

		if err := p.Handle(ctx, msg.Event); err != nil {
			log.Printf("[processor] event for %s abandoned: %v", msg.Event.UserID, err)
			if p.store.Ping(ctx) != nil {
				log.Printf("[processor] store unreachable, reconnecting")
				if rerr := p.store.Reconnect(); rerr != nil {
					log.Printf("[processor] reconnect failed: %v", rerr)
				}
			}
		} else if err := src.Commit(ctx, msg); err != nil {
			log.Printf("[processor] offset commit failed: %v", err)
		}
		health.Beat("processor")
	}
}
