package prediction

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
	"strconv"

	"github.com/gradecast/predictor-service/internal/models"
)

// DecodeStudent parses one JSON object and validates it into a StudentRecord.
func DecodeStudent(data []byte) (models.StudentRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return models.StudentRecord{}, validationError("", nil, "student record must be a JSON object")
	}
	return ValidateStudent(raw)
}

// ValidateStudent checks presence and domain of every field in
// models.StudentSchema. Unknown extra keys are ignored. Violations are
// reported for the first offending field in schema order, except missing
// fields which are all listed together.
func ValidateStudent(raw map[string]json.RawMessage) (models.StudentRecord, error) {
	var missing []string
	for _, col := range models.StudentSchema {
		if _, ok := raw[col.Name]; !ok {
			missing = append(missing, col.Name)
		}
	}
	if len(missing) > 0 {
		return models.StudentRecord{}, missingFeatureError(missing)
	}

	var rec models.StudentRecord
	for _, col := range models.StudentSchema {
		value := bytes.TrimSpace(raw[col.Name])
		switch col.Kind {
		case models.FieldCategorical:
			text, ok := decodeText(value)
			if !ok {
				return models.StudentRecord{}, validationError(col.Name, string(value), "%s must be a string", col.Name)
			}
			if col.Allowed != nil && !slices.Contains(col.Allowed, text) {
				return models.StudentRecord{}, unknownCategoryError(col.Name, text, col.Allowed)
			}
			if text == "" {
				return models.StudentRecord{}, validationError(col.Name, text, "%s must not be empty", col.Name)
			}
			rec.SetText(col.Name, text)

		case models.FieldInteger:
			n, ok := decodeInt(value)
			if !ok {
				return models.StudentRecord{}, validationError(col.Name, string(value), "%s must be an integer", col.Name)
			}
			if err := checkRange(col, n); err != nil {
				return models.StudentRecord{}, err
			}
			rec.SetNumber(col.Name, n)
		}
	}
	return rec, nil
}

func checkRange(col models.FieldSpec, n int) error {
	if col.Unbounded {
		if n < col.Min {
			return validationError(col.Name, n, "%s must be greater than or equal to %d", col.Name, col.Min)
		}
		return nil
	}
	if n < col.Min || n > col.Max {
		return validationError(col.Name, n, "%s must be between %d and %d", col.Name, col.Min, col.Max)
	}
	return nil
}

func decodeText(value []byte) (string, bool) {
	if len(value) == 0 || value[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeInt accepts JSON numbers with an integral value (so 16 and 16.0),
// and rejects strings, booleans and null.
func decodeInt(value []byte) (int, bool) {
	if len(value) == 0 || (value[0] != '-' && (value[0] < '0' || value[0] > '9')) {
		return 0, false
	}
	if n, err := strconv.ParseInt(string(value), 10, 64); err == nil {
		return int(n), true
	}
	f, err := strconv.ParseFloat(string(value), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
