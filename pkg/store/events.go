package store

import (
	"context"
	"encoding/json"
	"fmt"

	"churnpulse/pkg/churn"
)

// AppendEvent inserts one event into the append-only audit log. The raw
// event is kept as JSON alongside the indexed columns so the log stays a
// verbatim record even if the envelope grows fields later.
func (s *Store) AppendEvent(ctx context.Context, ev churn.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.conn().ExecContext(ctx, `
		INSERT INTO events (user_id, event_type, event_timestamp, event_data)
		VALUES ($1, $2, $3, $4)`,
		ev.UserID, ev.EventType, ev.Time(), data)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// EventCount returns the number of audit rows for one customer.
func (s *Store) EventCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
