package prediction

import (
	"fmt"

	"github.com/gradecast/predictor-service/internal/artifacts"
	"github.com/gradecast/predictor-service/internal/models"
)

// Aligner turns records into scaled feature vectors in training column
// order. The scaler and regressor are positional, so this is the one place
// where names are resolved to positions.
type Aligner struct {
	store   *artifacts.Store
	columns []string
}

func NewAligner(store *artifacts.Store) *Aligner {
	return &Aligner{store: store, columns: store.FeatureColumns()}
}

// Align encodes and scales a single record.
func (a *Aligner) Align(rec models.StudentRecord) ([]float64, error) {
	var missing []string
	for _, col := range a.columns {
		if _, ok := rec.Feature(col); !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, missingFeatureError(missing)
	}
	return a.alignRow(rec)
}

// AlignBatch aligns every row. A column counts as present when at least one
// row supplies it; the missing set is reported once for the whole batch.
// Per-row failures carry the 1-based student index.
func (a *Aligner) AlignBatch(recs []models.StudentRecord) ([][]float64, error) {
	var missing []string
	for _, col := range a.columns {
		present := false
		for _, rec := range recs {
			if _, ok := rec.Feature(col); ok {
				present = true
				break
			}
		}
		if !present {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, missingFeatureError(missing)
	}

	vectors := make([][]float64, len(recs))
	for i, rec := range recs {
		x, err := a.alignRow(rec)
		if err != nil {
			return nil, atRow(err, i+1)
		}
		vectors[i] = x
	}
	return vectors, nil
}

func (a *Aligner) alignRow(rec models.StudentRecord) ([]float64, error) {
	x := make([]float64, len(a.columns))
	for i, col := range a.columns {
		fv, ok := rec.Feature(col)
		if !ok {
			return nil, missingFeatureError([]string{col})
		}
		v, err := a.encode(col, fv)
		if err != nil {
			return nil, err
		}
		x[i] = v
	}

	scaled, err := a.store.Scaler().Transform(x)
	if err != nil {
		return nil, predictionError(err)
	}
	return scaled, nil
}

func (a *Aligner) encode(col string, fv models.FeatureValue) (float64, error) {
	if !a.store.IsCategorical(col) {
		if fv.Categorical {
			return 0, predictionError(fmt.Errorf("column %s is numeric in the model but categorical in the request schema", col))
		}
		return float64(fv.Number), nil
	}

	if !fv.Categorical {
		return 0, predictionError(fmt.Errorf("column %s is categorical in the model but numeric in the request schema", col))
	}
	enc, ok := a.store.Encoder(col)
	if !ok {
		return 0, predictionError(fmt.Errorf("no label encoder for categorical column %s", col))
	}
	code, ok := enc.Encode(fv.Text)
	if !ok {
		return 0, unknownCategoryError(col, fv.Text, enc.Classes())
	}
	return float64(code), nil
}
