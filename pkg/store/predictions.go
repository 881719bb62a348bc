package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"churnpulse/pkg/churn"
)

// InsertPrediction appends one score to the predictions time series.
func (s *Store) InsertPrediction(ctx context.Context, userID string, probability float64, at time.Time) error {
	_, err := s.conn().ExecContext(ctx, `
		INSERT INTO predictions (user_id, churn_probability, prediction_timestamp)
		VALUES ($1, $2, $3)`,
		userID, probability, at)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// LatestPrediction returns the newest score for one customer, or
// ErrNotFound if the customer has never been scored.
func (s *Store) LatestPrediction(ctx context.Context, userID string) (*churn.Prediction, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT prediction_id, user_id, churn_probability, prediction_timestamp
		FROM predictions WHERE user_id = $1
		ORDER BY prediction_timestamp DESC, prediction_id DESC LIMIT 1`, userID)

	var p churn.Prediction
	err := row.Scan(&p.PredictionID, &p.UserID, &p.Probability, &p.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read latest prediction: %w", err)
	}
	return &p, nil
}

// BulkInsertPredictions writes one row per entry inside a single
// transaction. Used by the historical backfill, where all rows share one
// timestamp.
func (s *Store) BulkInsertPredictions(ctx context.Context, scores map[string]float64, at time.Time) error {
	tx, err := s.conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin backfill tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO predictions (user_id, churn_probability, prediction_timestamp)
		VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("prepare backfill insert: %w", err)
	}
	defer stmt.Close()

	for id, p := range scores {
		if _, err := stmt.ExecContext(ctx, id, p, at); err != nil {
			return fmt.Errorf("backfill insert %s: %w", id, err)
		}
	}
	return tx.Commit()
}
