// Package churn holds the domain types shared by the event generator,
// the stream processor, and the batch tools.
package churn

import "time"

// Customer mirrors one row of the users table. customerID is immutable
// once created; MonthlyCharges and TotalCharges never go negative.
type Customer struct {
	CustomerID       string
	Gender           string
	SeniorCitizen    int
	Partner          string
	Dependents       string
	Tenure           int
	PhoneService     string
	MultipleLines    string
	InternetService  string
	OnlineSecurity   string
	OnlineBackup     string
	DeviceProtection string
	TechSupport      string
	StreamingTV      string
	StreamingMovies  string
	Contract         string
	PaperlessBilling string
	PaymentMethod    string
	MonthlyCharges   float64
	TotalCharges     float64
}

// Event is an immutable record of one successful customer-state mutation.
// It is created by the generator, carried over the bus, and appended to
// the audit log by the processor; it is never updated in place.
type Event struct {
	EventID   string  `json:"event_id,omitempty"`
	EventType string  `json:"event_type"`
	UserID    string  `json:"user_id"`
	Details   string  `json:"details"`
	Timestamp float64 `json:"timestamp"` // seconds since epoch, wire format
}

// Time converts the wire timestamp back into a time.Time.
func (e Event) Time() time.Time {
	sec := int64(e.Timestamp)
	nsec := int64((e.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Prediction is one row of the append-only predictions table. The newest
// row per customer is that customer's current risk score.
type Prediction struct {
	PredictionID int64
	UserID       string
	Probability  float64
	Timestamp    time.Time
}

// Action enumerates the state transitions the generator can attempt.
type Action int

const (
	ActionContractDowngrade Action = iota
	ActionServiceRemoval
	ActionCancelAutopay
	ActionContractUpgrade
	ActionAddService
	ActionEnableAutopay
	ActionTenureIncrease
)

// ServiceChargeDelta is the monthly-charge adjustment applied when an
// add-on service is enabled or disabled. Removal then re-addition of the
// same service restores the original charge exactly.
const ServiceChargeDelta = 5.0

// ActionSpec describes one action: its selection weight, the event_type
// string published on the bus, and the human-readable details line.
type ActionSpec struct {
	Action    Action
	Weight    float64
	EventType string
	Details   string
}

// Actions is the fixed weighted action table, churn-increasing actions
// first. Weights are selection probabilities and sum to 1.
var Actions = []ActionSpec{
	{ActionContractDowngrade, 0.25, "contract_downgrade", "Switched to Month-to-month"},
	{ActionServiceRemoval, 0.20, "removed_online_security", "Cancelled Online Security"},
	{ActionCancelAutopay, 0.15, "cancelled_autopay", "Switched to Mailed check"},
	{ActionContractUpgrade, 0.10, "contract_upgrade", "Upgraded to One year contract"},
	{ActionAddService, 0.10, "added_tech_support", "Subscribed to Tech Support"},
	{ActionEnableAutopay, 0.10, "enabled_autopay", "Switched to Credit card (automatic)"},
	{ActionTenureIncrease, 0.10, "monthly_anniversary", "Tenure increased by 1 month"},
}

// Spec returns the ActionSpec for a.
func (a Action) Spec() ActionSpec {
	for _, s := range Actions {
		if s.Action == a {
			return s
		}
	}
	return ActionSpec{}
}

func (a Action) String() string { return a.Spec().EventType }
