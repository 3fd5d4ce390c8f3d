package prediction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradecast/predictor-service/internal/artifacts"
)

type stubRegressor struct {
	predict func(x []float64) (float64, error)
	n       int
}

func (s stubRegressor) Predict(x []float64) (float64, error) { return s.predict(x) }
func (s stubRegressor) NumFeatures() int                     { return s.n }
func (s stubRegressor) Kind() string                         { return "stub" }

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{in: -3.2, want: 0},
		{in: 0, want: 0},
		{in: 11.456, want: 11.456},
		{in: 20, want: 20},
		{in: 27.9, want: 20},
		{in: math.Inf(1), want: 20},
		{in: math.Inf(-1), want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in), "Clamp(%v)", tt.in)
	}
}

func TestPredictorClampsEveryRow(t *testing.T) {
	p := NewPredictor(&artifacts.LinearModel{Coefficients: []float64{1}, Intercept: 0})

	grades, err := p.Predict([][]float64{{-5}, {7.25}, {31}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 7.25, 20}, grades)
}

func TestPredictorFailures(t *testing.T) {
	tests := []struct {
		name      string
		regressor artifacts.Regressor
		vectors   [][]float64
	}{
		{
			name:      "dimension mismatch",
			regressor: &artifacts.LinearModel{Coefficients: []float64{1, 2}},
			vectors:   [][]float64{{1, 2, 3}},
		},
		{
			name: "NaN output",
			regressor: stubRegressor{n: 1, predict: func([]float64) (float64, error) {
				return math.NaN(), nil
			}},
			vectors: [][]float64{{1}},
		},
		{
			name: "panicking regressor",
			regressor: stubRegressor{n: 1, predict: func(x []float64) (float64, error) {
				return x[5], nil
			}},
			vectors: [][]float64{{1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grades, err := NewPredictor(tt.regressor).Predict(tt.vectors)
			pe := requireKind(t, err, KindPrediction)
			assert.Nil(t, grades)
			assert.False(t, pe.Kind.ClientFault())
		})
	}
}
