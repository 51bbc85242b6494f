package artifacts

import (
	"encoding/json"
	"fmt"
)

// Scaler is a fitted per-column scaler.
type Scaler interface {
	Columns() []string
	Transform(values []float64) ([]float64, error)
}

type scalerFile struct {
	Type    string    `json:"type"`
	Columns []string  `json:"feature_names_in"`
	Mean    []float64 `json:"mean"`
	Min     []float64 `json:"min"`
	Scale   []float64 `json:"scale"`
}

// StandardScaler applies (x - mean) / scale.
type StandardScaler struct {
	columns []string
	mean    []float64
	scale   []float64
}

// MinMaxScaler applies x*scale + min.
type MinMaxScaler struct {
	columns []string
	min     []float64
	scale   []float64
}

// DecodeScaler parses a scaler export. "type" selects standard (the default) or minmax.
func DecodeScaler(data []byte) (Scaler, error) {
	var f scalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	if len(f.Columns) == 0 {
		return nil, fmt.Errorf("scaler has no feature_names_in")
	}

	switch f.Type {
	case "", "standard":
		if err := sameLength(f.Columns, "mean", f.Mean, "scale", f.Scale); err != nil {
			return nil, err
		}
		return NewStandardScaler(f.Columns, f.Mean, f.Scale), nil
	case "minmax":
		if err := sameLength(f.Columns, "min", f.Min, "scale", f.Scale); err != nil {
			return nil, err
		}
		return &MinMaxScaler{columns: f.Columns, min: f.Min, scale: f.Scale}, nil
	}
	return nil, fmt.Errorf("unsupported scaler type %q", f.Type)
}

// NewStandardScaler builds a standard scaler. Zero scales are treated as 1, the
// same way the fitting library guards constant columns.
func NewStandardScaler(columns []string, mean, scale []float64) *StandardScaler {
	s := &StandardScaler{
		columns: append([]string(nil), columns...),
		mean:    append([]float64(nil), mean...),
		scale:   append([]float64(nil), scale...),
	}
	for i, v := range s.scale {
		if v == 0 {
			s.scale[i] = 1
		}
	}
	return s
}

// Columns returns the fit-time column order.
func (s *StandardScaler) Columns() []string { return append([]string(nil), s.columns...) }

// Transform returns a scaled copy of values.
func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.columns) {
		return nil, fmt.Errorf("standard scaler fit on %d columns, got %d", len(s.columns), len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

// Columns returns the fit-time column order.
func (s *MinMaxScaler) Columns() []string { return append([]string(nil), s.columns...) }

// Transform returns a scaled copy of values.
func (s *MinMaxScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.columns) {
		return nil, fmt.Errorf("minmax scaler fit on %d columns, got %d", len(s.columns), len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*s.scale[i] + s.min[i]
	}
	return out, nil
}

func sameLength(columns []string, aName string, a []float64, bName string, b []float64) error {
	if len(a) != len(columns) {
		return fmt.Errorf("scaler %s has %d values for %d columns", aName, len(a), len(columns))
	}
	if len(b) != len(columns) {
		return fmt.Errorf("scaler %s has %d values for %d columns", bName, len(b), len(columns))
	}
	return nil
}
