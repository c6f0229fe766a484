package predict

import (
	"errors"
	"fmt"
	"log"

	"github.com/dmitryikh/leaves"
)

var (
	// ErrModelUnavailable is returned by Predict when no model artifact was
	// bound at startup. Loading failures are deferred to invocation time so an
	// unloaded model only matters on the prediction path.
	ErrModelUnavailable = errors.New("model not loaded")

	// ErrBadModelOutput is returned when the loaded model does not produce a
	// single regression output for the feature vector.
	ErrBadModelOutput = errors.New("unexpected model output shape")
)

// Predictor is a single-output regression model.
type Predictor interface {
	Predict(features []float64) (float64, error)
}

// Model wraps a gradient-boosted ensemble artifact for one prediction target.
// A Model with no ensemble bound is unavailable rather than invalid.
type Model struct {
	name     string
	ensemble *leaves.Ensemble
}

// LoadModel binds an XGBoost model artifact to a handle. A missing or
// unreadable artifact yields an unavailable handle, not an error; callers fall
// back to the provider forecast when prediction is attempted.
func LoadModel(name, path string) *Model {
	if path == "" {
		log.Printf("predict: no artifact configured for %s model", name)
		return &Model{name: name}
	}

	ensemble, err := leaves.XGEnsembleFromFile(path, true)
	if err != nil {
		log.Printf("predict: load %s model from %s: %v", name, path, err)
		return &Model{name: name}
	}

	log.Printf("predict: loaded %s model from %s", name, path)
	return &Model{name: name, ensemble: ensemble}
}

// Available reports whether an artifact is bound.
func (m *Model) Available() bool {
	return m.ensemble != nil
}

func (m *Model) Predict(features []float64) (float64, error) {
	if m.ensemble == nil {
		return 0, fmt.Errorf("%s: %w", m.name, ErrModelUnavailable)
	}

	if m.ensemble.NOutputGroups() != 1 {
		return 0, fmt.Errorf("%s: %d output groups: %w", m.name, m.ensemble.NOutputGroups(), ErrBadModelOutput)
	}

	predictions := make([]float64, 1)
	if err := m.ensemble.Predict(features, 0, predictions); err != nil {
		return 0, fmt.Errorf("%s: %w: %v", m.name, ErrBadModelOutput, err)
	}
	return predictions[0], nil
}
