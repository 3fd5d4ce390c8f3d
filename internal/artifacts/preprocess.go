package artifacts

import (
	"encoding/json"
	"fmt"
)

// Scaler is a fitted standardisation transform: (x - mean) / scale, per column.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func decodeScaler(data []byte) (*Scaler, error) {
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if len(s.Mean) == 0 {
		return nil, fmt.Errorf("scaler has no columns")
	}
	if len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("scaler mean has %d values, scale has %d", len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

// Width is the number of columns the scaler was fitted on.
func (s *Scaler) Width() int { return len(s.Mean) }

// Transform returns a new scaled vector; x is left untouched.
// A zero scale (constant column at fit time) divides by one.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d columns, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

// LabelEncoder maps each fitted category to its position in Classes.
type LabelEncoder struct {
	classes []string
	codes   map[string]int
}

// NewLabelEncoder indexes classes. Duplicates are rejected because the
// mapping must stay a bijection.
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("encoder has no classes")
	}
	codes := make(map[string]int, len(classes))
	for i, c := range classes {
		if _, dup := codes[c]; dup {
			return nil, fmt.Errorf("duplicate class %q", c)
		}
		codes[c] = i
	}
	return &LabelEncoder{classes: append([]string(nil), classes...), codes: codes}, nil
}

// Encode reports false when value was never seen at fit time.
func (e *LabelEncoder) Encode(value string) (int, bool) {
	code, ok := e.codes[value]
	return code, ok
}

// Classes returns a copy of the fitted vocabulary in code order.
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

type encoderDocument struct {
	Classes []string `json:"classes"`
}

func decodeEncoders(data []byte) (map[string]*LabelEncoder, error) {
	var docs map[string]encoderDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode label encoders: %w", err)
	}
	encoders := make(map[string]*LabelEncoder, len(docs))
	for col, doc := range docs {
		enc, err := NewLabelEncoder(doc.Classes)
		if err != nil {
			return nil, fmt.Errorf("encoder %s: %w", col, err)
		}
		encoders[col] = enc
	}
	return encoders, nil
}

// Metadata is the training-time summary echoed by /health, /metadata and
// every prediction response.
type Metadata struct {
	R2Score             float64  `json:"r2_score"`
	MAE                 float64  `json:"mae"`
	FeatureNames        []string `json:"feature_names"`
	CategoricalFeatures []string `json:"categorical_features"`
	NumericalFeatures   []string `json:"numerical_features"`
}

func decodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func (m Metadata) clone() Metadata {
	m.FeatureNames = append([]string(nil), m.FeatureNames...)
	m.CategoricalFeatures = append([]string(nil), m.CategoricalFeatures...)
	m.NumericalFeatures = append([]string(nil), m.NumericalFeatures...)
	return m
}
