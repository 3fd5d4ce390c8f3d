package prediction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gradecast/predictor-service/internal/artifacts"
	"github.com/gradecast/predictor-service/internal/models"
)

var jobs = []string{"at_home", "health", "other", "services", "teacher"}

func fittedClasses() map[string][]string {
	yn := []string{"no", "yes"}
	return map[string][]string{
		"school":     {"GP", "MS"},
		"sex":        {"F", "M"},
		"address":    {"R", "U"},
		"famsize":    {"GT3", "LE3"},
		"Pstatus":    {"A", "T"},
		"Mjob":       jobs,
		"Fjob":       jobs,
		"reason":     {"course", "home", "other", "reputation"},
		"guardian":   {"father", "mother", "other"},
		"schoolsup":  yn,
		"famsup":     yn,
		"paid":       yn,
		"activities": yn,
		"nursery":    yn,
		"higher":     yn,
		"internet":   yn,
		"romantic":   yn,
	}
}

type storeOptions struct {
	columns   []string
	weights   map[string]float64
	intercept float64
	mean      map[string]float64
	scale     map[string]float64
	classes   map[string][]string
	regressor artifacts.Regressor
}

func schemaColumns() []string {
	cols := make([]string, len(models.StudentSchema))
	for i, col := range models.StudentSchema {
		cols[i] = col.Name
	}
	return cols
}

// buildStore assembles an in-memory artifact bundle. By default it uses the
// schema column order, an identity scaler and y = G2.
func buildStore(t *testing.T, opts storeOptions) *artifacts.Store {
	t.Helper()
	if opts.columns == nil {
		opts.columns = schemaColumns()
	}
	if opts.weights == nil {
		opts.weights = map[string]float64{"G2": 1}
	}
	if opts.classes == nil {
		opts.classes = fittedClasses()
	}

	n := len(opts.columns)
	coef := make([]float64, n)
	mean := make([]float64, n)
	scale := make([]float64, n)
	var categorical, numerical []string
	encoders := map[string]*artifacts.LabelEncoder{}
	for i, col := range opts.columns {
		coef[i] = opts.weights[col]
		mean[i] = opts.mean[col]
		scale[i] = 1
		if s, ok := opts.scale[col]; ok {
			scale[i] = s
		}
		if classes, ok := opts.classes[col]; ok {
			enc, err := artifacts.NewLabelEncoder(classes)
			require.NoError(t, err)
			encoders[col] = enc
			categorical = append(categorical, col)
		} else {
			numerical = append(numerical, col)
		}
	}

	regressor := opts.regressor
	if regressor == nil {
		regressor = &artifacts.LinearModel{Coefficients: coef, Intercept: opts.intercept}
	}

	store, err := artifacts.NewStore(artifacts.Components{
		Regressor:      regressor,
		Scaler:         &artifacts.Scaler{Mean: mean, Scale: scale},
		Encoders:       encoders,
		FeatureColumns: opts.columns,
		Metadata: artifacts.Metadata{
			R2Score:             0.82,
			MAE:                 1.17,
			CategoricalFeatures: categorical,
			NumericalFeatures:   numerical,
		},
	})
	require.NoError(t, err)
	return store
}

func studentFields() map[string]any {
	return map[string]any{
		"school": "GP", "sex": "F", "age": 18, "address": "U", "famsize": "GT3",
		"Pstatus": "A", "Medu": 4, "Fedu": 4, "Mjob": "at_home", "Fjob": "teacher",
		"reason": "course", "guardian": "mother", "traveltime": 2, "studytime": 2,
		"failures": 0, "schoolsup": "yes", "famsup": "no", "paid": "no",
		"activities": "no", "nursery": "yes", "higher": "yes", "internet": "no",
		"romantic": "no", "famrel": 4, "freetime": 3, "goout": 4, "Dalc": 1,
		"Walc": 1, "health": 3, "absences": 6, "G1": 10, "G2": 11,
	}
}

func studentJSON(t *testing.T, overrides map[string]any, drop ...string) []byte {
	t.Helper()
	fields := studentFields()
	for k, v := range overrides {
		fields[k] = v
	}
	for _, k := range drop {
		delete(fields, k)
	}
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return data
}

func validStudent(t *testing.T, overrides map[string]any) models.StudentRecord {
	t.Helper()
	rec, err := DecodeStudent(studentJSON(t, overrides))
	require.NoError(t, err)
	return rec
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	pe, ok := err.(*Error)
	require.True(t, ok, "expected *prediction.Error, got %T: %v", err, err)
	require.Equal(t, kind, pe.Kind, "unexpected kind for %v", err)
	return pe
}
