package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"churnpulse/pkg/churn"
)

// UserIDs fetches every customer id, used by the generator to build its
// selection pool at startup.
func (s *Store) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn().QueryContext(ctx, `SELECT customerID FROM users`)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetCustomer reads the full current row for one customer. Returns
// ErrNotFound when the id does not exist.
func (s *Store) GetCustomer(ctx context.Context, id string) (*churn.Customer, error) {
	row := s.conn().QueryRowContext(ctx, `
		SELECT customerID, gender, SeniorCitizen, Partner, Dependents, tenure,
		       PhoneService, MultipleLines, InternetService, OnlineSecurity,
		       OnlineBackup, DeviceProtection, TechSupport, StreamingTV,
		       StreamingMovies, Contract, PaperlessBilling, PaymentMethod,
		       MonthlyCharges, TotalCharges
		FROM users WHERE customerID = $1`, id)

	var c churn.Customer
	err := row.Scan(&c.CustomerID, &c.Gender, &c.SeniorCitizen, &c.Partner,
		&c.Dependents, &c.Tenure, &c.PhoneService, &c.MultipleLines,
		&c.InternetService, &c.OnlineSecurity, &c.OnlineBackup,
		&c.DeviceProtection, &c.TechSupport, &c.StreamingTV,
		&c.StreamingMovies, &c.Contract, &c.PaperlessBilling,
		&c.PaymentMethod, &c.MonthlyCharges, &c.TotalCharges)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read customer %s: %w", id, err)
	}
	return &c, nil
}

// actionSQL maps each action to its conditional update. The WHERE clause
// carries the precondition so stale reads cannot apply an invalid
// transition; a zero rows-affected result means the precondition no
// longer held at write time.
var actionSQL = map[churn.Action]string{
	churn.ActionContractDowngrade: `UPDATE users SET Contract = 'Month-to-month'
		WHERE customerID = $1 AND Contract != 'Month-to-month'`,
	churn.ActionServiceRemoval: `UPDATE users SET OnlineSecurity = 'No', MonthlyCharges = MonthlyCharges - 5
		WHERE customerID = $1 AND OnlineSecurity = 'Yes'`,
	churn.ActionCancelAutopay: `UPDATE users SET PaymentMethod = 'Mailed check'
		WHERE customerID = $1 AND PaymentMethod LIKE '%(automatic)%'`,
	churn.ActionContractUpgrade: `UPDATE users SET Contract = 'One year'
		WHERE customerID = $1 AND Contract = 'Month-to-month'`,
	churn.ActionAddService: `UPDATE users SET TechSupport = 'Yes', MonthlyCharges = MonthlyCharges + 5
		WHERE customerID = $1 AND TechSupport = 'No'`,
	churn.ActionEnableAutopay: `UPDATE users SET PaymentMethod = 'Credit card (automatic)'
		WHERE customerID = $1 AND PaymentMethod NOT LIKE '%(automatic)%'`,
	churn.ActionTenureIncrease: `UPDATE users SET tenure = tenure + 1, TotalCharges = TotalCharges + MonthlyCharges
		WHERE customerID = $1`,
}

// ApplyAction runs one conditional update for a customer. It reports
// whether the update took effect; false with a nil error is the
// precondition-not-met outcome, a plain no-op.
func (s *Store) ApplyAction(ctx context.Context, action churn.Action, id string) (bool, error) {
	query, ok := actionSQL[action]
	if !ok {
		return false, fmt.Errorf("unknown action %d", action)
	}
	res, err := s.conn().ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("apply %s to %s: %w", action, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
