package prediction

import (
	"github.com/shopspring/decimal"

	"github.com/gradecast/predictor-service/internal/artifacts"
	"github.com/gradecast/predictor-service/internal/models"
)

// Confidence is the static training-time quality of the model.
type Confidence struct {
	R2Score float64 `json:"r2_score"`
	MAE     float64 `json:"mae"`
}

func ConfidenceFrom(meta artifacts.Metadata) Confidence {
	return Confidence{R2Score: meta.R2Score, MAE: meta.MAE}
}

type SingleResponse struct {
	Prediction    float64              `json:"prediction"`
	Confidence    Confidence           `json:"confidence"`
	InputFeatures models.StudentRecord `json:"input_features"`
}

type BatchItem struct {
	Student    int                  `json:"student"`
	Prediction float64              `json:"prediction"`
	Input      models.StudentRecord `json:"input"`
}

type BatchResponse struct {
	Predictions []BatchItem `json:"predictions"`
	Count       int         `json:"count"`
	Confidence  Confidence  `json:"confidence"`
}

// Formatter packages clamped grades for the wire. Rounding happens here and
// nowhere else.
type Formatter struct {
	confidence Confidence
}

func NewFormatter(confidence Confidence) *Formatter {
	return &Formatter{confidence: confidence}
}

func (f *Formatter) Single(grade float64, rec models.StudentRecord) *SingleResponse {
	return &SingleResponse{
		Prediction:    Round2(grade),
		Confidence:    f.confidence,
		InputFeatures: rec,
	}
}

// Batch pairs grades with their records; both slices are in input order.
func (f *Formatter) Batch(grades []float64, recs []models.StudentRecord) *BatchResponse {
	items := make([]BatchItem, len(grades))
	for i, g := range grades {
		items[i] = BatchItem{
			Student:    i + 1,
			Prediction: Round2(g),
			Input:      recs[i],
		}
	}
	return &BatchResponse{
		Predictions: items,
		Count:       len(items),
		Confidence:  f.confidence,
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
