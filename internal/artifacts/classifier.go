package artifacts

import (
	"encoding/json"
	"fmt"
	"math"
)

// Classifier is a trained binary decision function over a fixed-width row.
type Classifier interface {
	NumFeatures() int
	// FeatureNames returns the training column names, or nil when the artifact
	// was saved without them.
	FeatureNames() []string
	Classify(features []float64) (int, error)
}

// ProbabilityClassifier additionally reports the positive-class probability.
type ProbabilityClassifier interface {
	Classifier
	Probability(features []float64) (float64, error)
}

// DecodeClassifier parses either an XGBoost JSON model or a linear model export.
func DecodeClassifier(data []byte) (Classifier, error) {
	var probe struct {
		Learner json.RawMessage `json:"learner"`
		Type    string          `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse classifier: %w", err)
	}
	switch {
	case len(probe.Learner) > 0:
		return DecodeXGBoost(data)
	case probe.Type == "logistic":
		return DecodeLogistic(data)
	}
	return nil, fmt.Errorf("unrecognised classifier format (type %q)", probe.Type)
}

// LogisticModel is a linear model with a sigmoid link.
type LogisticModel struct {
	names     []string
	coef      []float64
	intercept float64
}

type logisticFile struct {
	Type         string    `json:"type"`
	FeatureNames []string  `json:"feature_names"`
	Coef         []float64 `json:"coef"`
	Intercept    float64   `json:"intercept"`
}

// DecodeLogistic parses {"type":"logistic","feature_names":[...],"coef":[...],"intercept":b}.
func DecodeLogistic(data []byte) (*LogisticModel, error) {
	var f logisticFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse logistic model: %w", err)
	}
	return NewLogisticModel(f.FeatureNames, f.Coef, f.Intercept)
}

// NewLogisticModel builds a model from coefficients. names may be nil.
func NewLogisticModel(names []string, coef []float64, intercept float64) (*LogisticModel, error) {
	if len(coef) == 0 {
		return nil, fmt.Errorf("logistic model has no coefficients")
	}
	if len(names) > 0 && len(names) != len(coef) {
		return nil, fmt.Errorf("logistic model has %d names for %d coefficients", len(names), len(coef))
	}
	return &LogisticModel{
		names:     append([]string(nil), names...),
		coef:      append([]float64(nil), coef...),
		intercept: intercept,
	}, nil
}

// NumFeatures returns the model width.
func (m *LogisticModel) NumFeatures() int { return len(m.coef) }

// FeatureNames returns the training column names, if recorded.
func (m *LogisticModel) FeatureNames() []string { return append([]string(nil), m.names...) }

// Probability returns sigmoid(intercept + coef·x).
func (m *LogisticModel) Probability(features []float64) (float64, error) {
	if len(features) != len(m.coef) {
		return 0, fmt.Errorf("logistic model expects %d features, got %d", len(m.coef), len(features))
	}
	z := m.intercept
	for i, x := range features {
		z += m.coef[i] * x
	}
	return sigmoid(z), nil
}

// Classify returns 1 when the probability exceeds 0.5.
func (m *LogisticModel) Classify(features []float64) (int, error) {
	p, err := m.Probability(features)
	if err != nil {
		return 0, err
	}
	return ClassForProbability(p), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// ClassForProbability maps a positive-class probability to a class: 1 above 0.5.
func ClassForProbability(p float64) int {
	if p > 0.5 {
		return 1
	}
	return 0
}
