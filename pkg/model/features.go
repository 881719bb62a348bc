package model

import (
	"fmt"
	"sort"

	"churnpulse/pkg/churn"
)

// Postgres folds unquoted identifiers to lower case, so the stored
// column names never match the model's canonical feature names directly.
// columnMapping is the static translation table; it is checked against
// the loaded model at startup so a drifted artifact fails fast instead
// of surfacing as a missing-feature error mid-stream.
var columnMapping = map[string]string{
	"gender":           "gender",
	"seniorcitizen":    "SeniorCitizen",
	"partner":          "Partner",
	"dependents":       "Dependents",
	"tenure":           "tenure",
	"phoneservice":     "PhoneService",
	"multiplelines":    "MultipleLines",
	"internetservice":  "InternetService",
	"onlinesecurity":   "OnlineSecurity",
	"onlinebackup":     "OnlineBackup",
	"deviceprotection": "DeviceProtection",
	"techsupport":      "TechSupport",
	"streamingtv":      "StreamingTV",
	"streamingmovies":  "StreamingMovies",
	"contract":         "Contract",
	"paperlessbilling": "PaperlessBilling",
	"paymentmethod":    "PaymentMethod",
	"monthlycharges":   "MonthlyCharges",
	"totalcharges":     "TotalCharges",
}

// CanonicalFeatures lists every feature name the mapping can produce,
// sorted. The identifier column is not a feature and never appears here.
func CanonicalFeatures() []string {
	names := make([]string, 0, len(columnMapping))
	for _, v := range columnMapping {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

// ValidateMapping checks that the model's expected feature set and the
// column mapping's canonical names are exactly equal. Any difference is
// a configuration error: a silently dropped or misnamed feature would
// skew every score.
func ValidateMapping(m *Model) error {
	want := map[string]bool{}
	for _, n := range m.FeatureNames() {
		want[n] = true
	}
	have := map[string]bool{}
	for _, n := range CanonicalFeatures() {
		have[n] = true
	}
	for n := range want {
		if !have[n] {
			return fmt.Errorf("model expects feature %q with no mapped column", n)
		}
	}
	for n := range have {
		if !want[n] {
			return fmt.Errorf("mapped column %q is not a model feature", n)
		}
	}
	return nil
}

// BuildVector maps a customer row into the model's named feature vector,
// dropping the identifier column.
func BuildVector(c *churn.Customer) FeatureVector {
	return FeatureVector{
		Numeric: map[string]float64{
			"SeniorCitizen":  float64(c.SeniorCitizen),
			"tenure":         float64(c.Tenure),
			"MonthlyCharges": c.MonthlyCharges,
			"TotalCharges":   c.TotalCharges,
		},
		Categorical: map[string]string{
			"gender":           c.Gender,
			"Partner":          c.Partner,
			"Dependents":       c.Dependents,
			"PhoneService":     c.PhoneService,
			"MultipleLines":    c.MultipleLines,
			"InternetService":  c.InternetService,
			"OnlineSecurity":   c.OnlineSecurity,
			"OnlineBackup":     c.OnlineBackup,
			"DeviceProtection": c.DeviceProtection,
			"TechSupport":      c.TechSupport,
			"StreamingTV":      c.StreamingTV,
			"StreamingMovies":  c.StreamingMovies,
			"Contract":         c.Contract,
			"PaperlessBilling": c.PaperlessBilling,
			"PaymentMethod":    c.PaymentMethod,
		},
	}
}
