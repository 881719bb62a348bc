package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpulse/pkg/bus"
	"churnpulse/pkg/churn"
	"churnpulse/pkg/model"
	"churnpulse/pkg/store"
)

type fakeStore struct {
	customers   map[string]*churn.Customer
	audits      []churn.Event
	predictions []churn.Prediction

	auditErr   error
	predictErr error
	readErr    error
}

func (f *fakeStore) AppendEvent(ctx context.Context, ev churn.Event) error {
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audits = append(f.audits, ev)
	return nil
}

func (f *fakeStore) GetCustomer(ctx context.Context, id string) (*churn.Customer, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	c, ok := f.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) InsertPrediction(ctx context.Context, userID string, p float64, at time.Time) error {
	if f.predictErr != nil {
		return f.predictErr
	}
	f.predictions = append(f.predictions, churn.Prediction{UserID: userID, Probability: p, Timestamp: at})
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Reconnect() error               { return nil }

type fixedScorer struct{ p float64 }

func (s fixedScorer) Score(fv model.FeatureVector) (float64, error) { return s.p, nil }

type fakeSink struct {
	kinds    []string
	payloads []map[string]any
	err      error
}

func (f *fakeSink) Send(ctx context.Context, kind string, payload map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.kinds = append(f.kinds, kind)
	f.payloads = append(f.payloads, payload)
	return nil
}

func event(userID string) churn.Event {
	return churn.Event{
		EventID:   "ev-1",
		EventType: "contract_downgrade",
		UserID:    userID,
		Details:   "Switched to Month-to-month",
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
}

func knownCustomer(id string) map[string]*churn.Customer {
	return map[string]*churn.Customer{id: {
		CustomerID: id, Contract: "Month-to-month",
		MonthlyCharges: 70.0, Tenure: 12,
	}}
}

func TestHandleScoresAndAlertsHighRisk(t *testing.T) {
	st := &fakeStore{customers: knownCustomer("C-100")}
	sink := &fakeSink{}
	p := New(st, fixedScorer{0.85}, sink, nil)

	require.NoError(t, p.Handle(context.Background(), event("C-100")))

	require.Len(t, st.audits, 1)
	require.Len(t, st.predictions, 1)
	assert.Equal(t, 0.85, st.predictions[0].Probability)

	require.Len(t, sink.kinds, 1)
	assert.Equal(t, "churn_alert", sink.kinds[0])
	assert.Equal(t, 0.85, sink.payloads[0]["churn_probability"])
	assert.Equal(t, "C-100", sink.payloads[0]["user_id"])
	assert.Equal(t, "contract_downgrade", sink.payloads[0]["event_type"])
}

func TestHandleBoundaryScoreIsNotAnAlert(t *testing.T) {
	st := &fakeStore{customers: knownCustomer("C-100")}
	sink := &fakeSink{}
	p := New(st, fixedScorer{0.70}, sink, nil)

	require.NoError(t, p.Handle(context.Background(), event("C-100")))
	require.Len(t, sink.kinds, 1)
	assert.Equal(t, "new_event", sink.kinds[0])
}

func TestHandleUnknownUserSkipsScoring(t *testing.T) {
	st := &fakeStore{customers: map[string]*churn.Customer{}}
	sink := &fakeSink{}
	p := New(st, fixedScorer{0.85}, sink, nil)

	require.NoError(t, p.Handle(context.Background(), event("X-999")))
	assert.Len(t, st.audits, 1, "audit row is still written")
	assert.Empty(t, st.predictions)
	assert.Empty(t, sink.kinds)
}

func TestHandleRedeliveryAppendsAgain(t *testing.T) {
	st := &fakeStore{customers: knownCustomer("C-100")}
	sink := &fakeSink{}
	p := New(st, fixedScorer{0.42}, sink, nil)

	ev := event("C-100")
	require.NoError(t, p.Handle(context.Background(), ev))
	require.NoError(t, p.Handle(context.Background(), ev))

	assert.Len(t, st.audits, 2)
	require.Len(t, st.predictions, 2)
	assert.Equal(t, st.predictions[0].Probability, st.predictions[1].Probability,
		"same underlying state scores the same")
}

func TestHandleAuditFailureDoesNotBlockScoring(t *testing.T) {
	st := &fakeStore{customers: knownCustomer("C-100"), auditErr: errors.New("insert timeout")}
	sink := &fakeSink{}
	p := New(st, fixedScorer{0.30}, sink, nil)

	require.NoError(t, p.Handle(context.Background(), event("C-100")))
	assert.Len(t, st.predictions, 1)
	assert.Len(t, sink.kinds, 1)
}

func TestHandleSinkFailureIsSwallowed(t *testing.T) {
	st := &fakeStore{customers: knownCustomer("C-100")}
	sink := &fakeSink{err: errors.New("sink down")}
	p := New(st, fixedScorer{0.90}, sink, nil)

	require.NoError(t, p.Handle(context.Background(), event("C-100")))
	assert.Len(t, st.predictions, 1, "scoring proceeds despite the sink")
}

func TestHandlePredictionFailureAbandonsEvent(t *testing.T) {
	st := &fakeStore{customers: knownCustomer("C-100"), predictErr: errors.New("connection reset")}
	sink := &fakeSink{}
	p := New(st, fixedScorer{0.90}, sink, nil)

	err := p.Handle(context.Background(), event("C-100"))
	require.Error(t, err)
	assert.Empty(t, sink.kinds, "no broadcast for an unpersisted score")
}

func TestClassifyThreshold(t *testing.T) {
	assert.Equal(t, "new_event", Classify(0.70))
	assert.Equal(t, "churn_alert", Classify(0.7000001))
	assert.Equal(t, "new_event", Classify(0.0))
	assert.Equal(t, "churn_alert", Classify(1.0))
}

type scriptedSource struct {
	msgs    []bus.Message
	i       int
	cancel  context.CancelFunc
	commits []churn.Event
}

func (s *scriptedSource) Fetch(ctx context.Context) (bus.Message, error) {
	if s.i >= len(s.msgs) {
		s.cancel()
		return bus.Message{}, context.Canceled
	}
	m := s.msgs[s.i]
	s.i++
	return m, nil
}

func (s *scriptedSource) Commit(ctx context.Context, m bus.Message) error {
	s.commits = append(s.commits, m.Event)
	return nil
}

func TestRunCommitsHandledMessages(t *testing.T) {
	st := &fakeStore{customers: knownCustomer("C-100")}
	p := New(st, fixedScorer{0.10}, &fakeSink{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{
		msgs:   []bus.Message{{Event: event("C-100")}, {Event: event("X-999")}},
		cancel: cancel,
	}
	p.Run(ctx, src)

	// Both the scored event and the unknown-user skip are handled
	// outcomes; both offsets move forward.
	assert.Len(t, src.commits, 2)
	assert.Len(t, st.predictions, 1)
}

func TestRunDoesNotCommitAbandonedMessages(t *testing.T) {
	st := &fakeStore{customers: knownCustomer("C-100"), predictErr: errors.New("down")}
	p := New(st, fixedScorer{0.10}, &fakeSink{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{msgs: []bus.Message{{Event: event("C-100")}}, cancel: cancel}
	p.Run(ctx, src)

	assert.Empty(t, src.commits, "abandoned event's offset stays uncommitted")
}
