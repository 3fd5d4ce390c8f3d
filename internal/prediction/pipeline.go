// Package prediction is the request path from raw student JSON to a
// formatted grade: validate, align (encode, reorder, scale), predict, clamp,
// format. Everything here is synchronous and reads only the immutable
// artifacts, so one Pipeline is shared by all requests without locking.
package prediction

import (
	"bytes"
	"encoding/json"

	"github.com/gradecast/predictor-service/internal/artifacts"
	"github.com/gradecast/predictor-service/internal/models"
)

type Pipeline struct {
	aligner   *Aligner
	predictor *Predictor
	formatter *Formatter
}

func NewPipeline(store *artifacts.Store) *Pipeline {
	return &Pipeline{
		aligner:   NewAligner(store),
		predictor: NewPredictor(store.Regressor()),
		formatter: NewFormatter(ConfidenceFrom(store.Metadata())),
	}
}

// Predict runs one validated record through the pipeline.
func (p *Pipeline) Predict(rec models.StudentRecord) (*SingleResponse, error) {
	x, err := p.aligner.Align(rec)
	if err != nil {
		return nil, err
	}
	grades, err := p.predictor.Predict([][]float64{x})
	if err != nil {
		return nil, err
	}
	return p.formatter.Single(grades[0], rec), nil
}

// PredictBatch handles the batch as one unit: any failing row fails it all.
func (p *Pipeline) PredictBatch(recs []models.StudentRecord) (*BatchResponse, error) {
	if len(recs) == 0 {
		return nil, validationError("students", nil, "Data list cannot be empty")
	}
	vectors, err := p.aligner.AlignBatch(recs)
	if err != nil {
		return nil, err
	}
	grades, err := p.predictor.Predict(vectors)
	if err != nil {
		return nil, err
	}
	return p.formatter.Batch(grades, recs), nil
}

// PredictJSON validates and predicts a single JSON object.
func (p *Pipeline) PredictJSON(data []byte) (*SingleResponse, error) {
	rec, err := DecodeStudent(data)
	if err != nil {
		return nil, err
	}
	return p.Predict(rec)
}

// PredictBatchJSON validates and predicts a batch body (see DecodeBatch).
func (p *Pipeline) PredictBatchJSON(data []byte, maxRows int) (*BatchResponse, error) {
	recs, err := DecodeBatch(data, maxRows)
	if err != nil {
		return nil, err
	}
	return p.PredictBatch(recs)
}

type batchEnvelope struct {
	Students []json.RawMessage `json:"students"`
}

// DecodeBatch accepts either a bare JSON array of students or an object
// {"students": [...]}. Each row is validated on its own and errors carry
// the row's 1-based student index. maxRows <= 0 means no limit.
func DecodeBatch(data []byte, maxRows int) ([]models.StudentRecord, error) {
	data = bytes.TrimSpace(data)

	var rows []json.RawMessage
	switch {
	case len(data) > 0 && data[0] == '[':
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, validationError("students", nil, "batch body must be a JSON array of student records")
		}
	case len(data) > 0 && data[0] == '{':
		var env batchEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Students == nil {
			return nil, validationError("students", nil, `batch body must contain a "students" array`)
		}
		rows = env.Students
	default:
		return nil, validationError("students", nil, "batch body must be a JSON array of student records")
	}

	if len(rows) == 0 {
		return nil, validationError("students", nil, "Data list cannot be empty")
	}
	if maxRows > 0 && len(rows) > maxRows {
		return nil, validationError("students", len(rows), "batch has %d students, the limit is %d", len(rows), maxRows)
	}

	recs := make([]models.StudentRecord, len(rows))
	for i, row := range rows {
		rec, err := DecodeStudent(row)
		if err != nil {
			return nil, atRow(err, i+1)
		}
		recs[i] = rec
	}
	return recs, nil
}
