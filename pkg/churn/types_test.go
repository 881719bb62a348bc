package churn

import (
	"math"
	"testing"
	"time"
)

func TestActionWeightsSumToOne(t *testing.T) {
	var total float64
	for _, a := range Actions {
		if a.Weight <= 0 {
			t.Errorf("action %s has non-positive weight %f", a.EventType, a.Weight)
		}
		total += a.Weight
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("weights sum to %f, want 1.0", total)
	}
}

func TestActionSpecLookup(t *testing.T) {
	spec := ActionContractDowngrade.Spec()
	if spec.EventType != "contract_downgrade" {
		t.Errorf("got event type %q", spec.EventType)
	}
	if spec.Weight != 0.25 {
		t.Errorf("got weight %f, want 0.25", spec.Weight)
	}
}

func TestEventTimeRoundTrip(t *testing.T) {
	now := time.Now()
	ev := Event{Timestamp: float64(now.UnixNano()) / 1e9}
	got := ev.Time()
	if d := got.Sub(now); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("round-tripped time off by %v", d)
	}
}
