// Package model loads the pretrained churn classifier artifact and
// scores feature vectors with it. The artifact is opaque to the rest of
// the pipeline: callers hand in a named feature vector and get back a
// probability in [0,1].
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
)

// NumericFeature is one standardized numeric input.
type NumericFeature struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
	Weight float64 `json:"weight"`
}

// CategoricalFeature is one one-hot encoded input; each observed level
// carries its own weight. Levels absent from the map contribute zero
// (the baseline level).
type CategoricalFeature struct {
	Name   string             `json:"name"`
	Levels map[string]float64 `json:"levels"`
}

// Model is an immutable pretrained binary classifier. Loaded once at
// process start and safe for concurrent use.
type Model struct {
	ModelID     string               `json:"model_id"`
	Version     string               `json:"version"`
	Algorithm   string               `json:"algorithm"`
	CreatedAt   time.Time            `json:"created_at"`
	Bias        float64              `json:"bias"`
	Numeric     []NumericFeature     `json:"numeric"`
	Categorical []CategoricalFeature `json:"categorical"`
}

// Load reads and validates a model artifact. When a <path>.sha256
// sidecar exists the artifact must match it; a mismatch means a corrupt
// or tampered artifact and is a fatal configuration error.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	if err := verifyHash(path, raw); err != nil {
		return nil, err
	}

	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if len(m.Numeric) == 0 && len(m.Categorical) == 0 {
		return nil, fmt.Errorf("model artifact %s declares no features", path)
	}
	return &m, nil
}

func verifyHash(path string, raw []byte) error {
	sidecar := path + ".sha256"
	want, err := os.ReadFile(sidecar)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", sidecar, err)
	}
	sum := sha256.Sum256(raw)
	got := hex.EncodeToString(sum[:])
	if got != strings.TrimSpace(strings.Fields(string(want))[0]) {
		return fmt.Errorf("model artifact hash mismatch: got %s", got)
	}
	return nil
}

// FeatureNames returns every feature the model expects, numeric first.
func (m *Model) FeatureNames() []string {
	names := make([]string, 0, len(m.Numeric)+len(m.Categorical))
	for _, f := range m.Numeric {
		names = append(names, f.Name)
	}
	for _, f := range m.Categorical {
		names = append(names, f.Name)
	}
	return names
}

// FeatureVector is the model input: values keyed by canonical feature
// name, split by kind.
type FeatureVector struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

// Score computes the churn probability for one feature vector. Every
// feature the model declares must be present in the vector.
func (m *Model) Score(fv FeatureVector) (float64, error) {
	z := m.Bias
	for _, f := range m.Numeric {
		x, ok := fv.Numeric[f.Name]
		if !ok {
			return 0, fmt.Errorf("missing numeric feature %q", f.Name)
		}
		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		z += f.Weight * (x - f.Mean) / scale
	}
	for _, f := range m.Categorical {
		v, ok := fv.Categorical[f.Name]
		if !ok {
			return 0, fmt.Errorf("missing categorical feature %q", f.Name)
		}
		z += f.Levels[v]
	}
	return sigmoid(z), nil
}

// Contributions returns each feature's additive term in the decision
// function for one vector. Used by the offline importance report;
// features missing from the vector are skipped rather than erroring.
func (m *Model) Contributions(fv FeatureVector) map[string]float64 {
	out := make(map[string]float64, len(m.Numeric)+len(m.Categorical))
	for _, f := range m.Numeric {
		if x, ok := fv.Numeric[f.Name]; ok {
			scale := f.Scale
			if scale == 0 {
				scale = 1
			}
			out[f.Name] = f.Weight * (x - f.Mean) / scale
		}
	}
	for _, f := range m.Categorical {
		if v, ok := fv.Categorical[f.Name]; ok {
			out[f.Name] = f.Levels[v]
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
