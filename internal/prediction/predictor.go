package prediction

import (
	"fmt"
	"math"

	"github.com/gradecast/predictor-service/internal/artifacts"
)

// Grade scale bounds.
const (
	MinGrade = 0.0
	MaxGrade = 20.0
)

// Predictor runs the regressor and clamps its output to the grade scale.
type Predictor struct {
	regressor artifacts.Regressor
}

func NewPredictor(regressor artifacts.Regressor) *Predictor {
	return &Predictor{regressor: regressor}
}

// Predict returns one clamped grade per vector, in input order. Any failure
// is a KindPrediction error: it means the artifacts disagree with each other.
func (p *Predictor) Predict(vectors [][]float64) (grades []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			grades, err = nil, predictionError(fmt.Errorf("regressor panic: %v", r))
		}
	}()

	grades = make([]float64, len(vectors))
	for i, x := range vectors {
		y, err := p.regressor.Predict(x)
		if err != nil {
			return nil, predictionError(err)
		}
		if math.IsNaN(y) {
			return nil, predictionError(fmt.Errorf("regressor returned NaN for row %d", i+1))
		}
		grades[i] = Clamp(y)
	}
	return grades, nil
}

// Clamp truncates y into [MinGrade, MaxGrade].
func Clamp(y float64) float64 {
	return math.Max(MinGrade, math.Min(MaxGrade, y))
}
