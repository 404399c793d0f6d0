// scaler.go loads the pre-fitted feature scaler artifact and applies its
// affine transform.
package screamdet

import (
	"encoding/json"
	"os"

	"github.com/soundsentry/screamdet-go/internal/errors"
)

// Scaler holds the per-dimension affine transform learned at training time.
// The artifact is read-only, a Scaler is safe for concurrent use.
type Scaler struct {
	Version string    `json:"version"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

// LoadScaler reads a scaler artifact from disk.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("screamdet").
			Category(errors.CategoryModelLoad).
			Context("artifact", "scaler").
			Build()
	}

	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.New(err).
			Component("screamdet").
			Category(errors.CategoryModelLoad).
			Context("artifact", "scaler").
			Build()
	}

	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, errors.Newf("scaler artifact is malformed: %d means, %d scales", len(s.Mean), len(s.Scale)).
			Component("screamdet").
			Category(errors.CategoryModelLoad).
			Context("artifact", "scaler").
			Build()
	}

	for i, sc := range s.Scale {
		if sc == 0 {
			return nil, errors.Newf("scaler artifact has zero scale at dimension %d", i).
				Component("screamdet").
				Category(errors.CategoryModelLoad).
				Context("artifact", "scaler").
				Build()
		}
	}

	return &s, nil
}

// Dim returns the dimensionality the scaler was fitted on.
func (s *Scaler) Dim() int {
	return len(s.Mean)
}

// Transform applies (x - mean) / scale per dimension and returns a new
// slice. A dimensionality mismatch is a deployment error and is surfaced as
// a fatal model-shape error, never retried.
func (s *Scaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.Mean) {
		return nil, errors.Newf("feature vector has %d dimensions, scaler was fitted on %d", len(values), len(s.Mean)).
			Component("screamdet").
			Category(errors.CategoryModelShape).
			Priority(errors.PriorityCritical).
			Build()
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
