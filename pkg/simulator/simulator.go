// Package simulator is the event generator: it applies one weighted
// random state transition per tick against the customer state store and
// publishes an event for every transition that actually took effect.
package simulator

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"churnpulse/pkg/churn"
	"churnpulse/pkg/health"
)

var (
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churn", Subsystem: "simulator", Name: "ticks_total",
			Help: "Simulator ticks by outcome."},
		[]string{"outcome"}, // applied, noop, error
	)
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "churn", Subsystem: "simulator", Name: "events_published_total",
			Help: "Events published to the bus by type."},
		[]string{"event_type"},
	)
	publishErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "churn", Subsystem: "simulator", Name: "publish_errors_total",
			Help: "Events whose bus publish failed."},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal, eventsPublished, publishErrors)
}

// StateStore is the slice of the store the simulator needs.
type StateStore interface {
	ApplyAction(ctx context.Context, action churn.Action, id string) (bool, error)
	Reconnect() error
}

// Publisher publishes events onto the message bus.
type Publisher interface {
	Publish(ctx context.Context, ev churn.Event) error
}

// Simulator drives the tick loop over a pre-fetched customer pool.
type Simulator struct {
	store StateStore
	pub   Publisher
	pool  []string
	rng   *rand.Rand

	// Inter-tick sleep bounds; the generator's only rate limit.
	MinDelay time.Duration
	MaxDelay time.Duration
}

// New builds a simulator over the given customer pool. The pool must be
// non-empty; ids are chosen from it uniformly at random.
func New(store StateStore, pub Publisher, pool []string, seed int64) *Simulator {
	return &Simulator{
		store:    store,
		pub:      pub,
		pool:     pool,
		rng:      rand.New(rand.NewSource(seed)),
		MinDelay: 3 * time.Second,
		MaxDelay: 7 * time.Second,
	}
}

// pickAction makes a weighted random choice from the action table.
func (s *Simulator) pickAction() churn.ActionSpec {
	var total float64
	for _, a := range churn.Actions {
		total += a.Weight
	}
	r := s.rng.Float64() * total
	for _, a := range churn.Actions {
		r -= a.Weight
		if r < 0 {
			return a
		}
	}
	return churn.Actions[len(churn.Actions)-1]
}

// Tick runs one simulation step. It returns the published event, or nil
// when the chosen action's precondition no longer held (a no-op, not an
// error). A store error leaves the tick unapplied; the caller decides
// whether to reconnect.
func (s *Simulator) Tick(ctx context.Context) (*churn.Event, error) {
	userID := s.pool[s.rng.Intn(len(s.pool))]
	spec := s.pickAction()

	applied, err := s.store.ApplyAction(ctx, spec.Action, userID)
	if err != nil {
		ticksTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !applied {
		ticksTotal.WithLabelValues("noop").Inc()
		return nil, nil
	}
	ticksTotal.WithLabelValues("applied").Inc()

	ev := churn.Event{
		EventID:   uuid.New().String(),
		EventType: spec.EventType,
		UserID:    userID,
		Details:   spec.Details,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		// The mutation is committed; the publish outcome is ambiguous.
		// Log and move on rather than fabricate a possible duplicate.
		publishErrors.Inc()
		log.Printf("[simulator] publish failed for %s: %v", userID, err)
		return &ev, nil
	}
	eventsPublished.WithLabelValues(ev.EventType).Inc()
	return &ev, nil
}

// Run ticks until ctx is cancelled. Store connectivity errors trigger a
// reconnect; if that fails too the loop keeps retrying on later ticks
// instead of terminating, surfacing only through logs and the liveness
// gauge.
func (s *Simulator) Run(ctx context.Context) {
	log.Printf("[simulator] starting with %d customers in pool", len(s.pool))
	for {
		ev, err := s.Tick(ctx)
		switch {
		case err != nil:
			log.Printf("[simulator] tick failed: %v; reconnecting", err)
			if rerr := s.store.Reconnect(); rerr != nil {
				log.Printf("[simulator] reconnect failed: %v", rerr)
			}
		case ev != nil:
			log.Printf("[simulator] %s for user %s", ev.EventType, ev.UserID)
		}
		health.Beat("simulator")

		delay := s.MinDelay + time.Duration(s.rng.Float64()*float64(s.MaxDelay-s.MinDelay))
		select {
		case <-ctx.Done():
			log.Printf("[simulator] shutting down")
			return
		case <-time.After(delay):
		}
	}
}
